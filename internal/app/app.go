package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	server "github.com/jeknom/udp-game-example/server"
	"github.com/jeknom/udp-game-example/server/internal/config"
	servernet "github.com/jeknom/udp-game-example/server/internal/net"
	"github.com/jeknom/udp-game-example/server/internal/net/udp"
	"github.com/jeknom/udp-game-example/server/internal/observability"
	"github.com/jeknom/udp-game-example/server/internal/sim"
	"github.com/jeknom/udp-game-example/server/internal/telemetry"
	"github.com/jeknom/udp-game-example/server/logging"
	loggingSinks "github.com/jeknom/udp-game-example/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger telemetry.Logger
	// Settings overrides the environment when set.
	Settings *config.Config
	// EnvFiles are loaded before reading the environment. Defaults to .env.
	EnvFiles []string
	// Console receives the console sink output. Defaults to stdout.
	Console io.Writer
}

// Run serves the UDP session and the diagnostics endpoint until ctx is
// cancelled. Only startup failures and the session itself end it early.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	var settings config.Config
	if cfg.Settings != nil {
		settings = *cfg.Settings
	} else {
		loaded, err := config.Load(fallbackLogger, cfg.EnvFiles...)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		settings = loaded
	}

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	sinks, err := buildSinks(settings.Logging, console)
	if err != nil {
		return err
	}
	router, err := logging.NewRouter(logging.SystemClock{}, settings.Logging, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	transport, err := udp.Listen(settings.UDPAddr)
	if err != nil {
		return err
	}
	defer transport.Close()

	loopCfg := sim.LoopConfig{
		TickRate:        settings.TickRate,
		CatchupMaxTicks: settings.CatchupMaxTicks,
		SlowTickEvery:   settings.SlowTickEvery,
	}
	hubCfg := server.DefaultHubConfig()
	hubCfg.Loop = loopCfg
	hubCfg.QueueCapacity = settings.QueueCapacity
	hubCfg.QueueWarningStep = settings.QueueWarningStep
	hubCfg.Logger = telemetryLogger

	hub := server.NewHub(hubCfg, transport, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return hub.Run(groupCtx)
	})

	if settings.DiagnosticsAddr != "" {
		handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
			Logger:        fallbackLogger,
			Loop:          loopCfg,
			Observability: observability.Config{EnablePprof: settings.EnablePprof},
		})
		srv := &http.Server{Addr: settings.DiagnosticsAddr, Handler: handler}
		telemetryLogger.Printf("diagnostics listening on %s", srv.Addr)

		// Diagnostics are optional: a failed listener is reported and the
		// session keeps running until ctx is cancelled.
		group.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				telemetryLogger.Printf("diagnostics server on %s stopped: %v", srv.Addr, err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return group.Wait()
}

func buildSinks(cfg logging.Config, console io.Writer) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	for _, name := range cfg.EnabledSinks {
		switch name {
		case logging.SinkConsole:
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(console, cfg.Console)})
		case logging.SinkJSON:
			file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("failed to open json log %s: %w", cfg.JSON.FilePath, err)
			}
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(file, cfg.JSON.FlushInterval)})
		default:
			return nil, fmt.Errorf("%w: unknown log sink %q", config.ErrInvalid, name)
		}
	}
	return sinks, nil
}
