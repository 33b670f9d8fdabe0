package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jeknom/udp-game-example/server"
	"github.com/jeknom/udp-game-example/server/internal/net/ws"
	"github.com/jeknom/udp-game-example/server/internal/observability"
	"github.com/jeknom/udp-game-example/server/internal/sim"
)

type HTTPHandlerConfig struct {
	Logger        *log.Logger
	Loop          sim.LoopConfig
	Observability observability.Config
}

type diagnosticsPayload struct {
	Status        string            `json:"status"`
	ServerTime    int64             `json:"serverTime"`
	TickRate      int               `json:"tickRate"`
	SlowTickEvery int               `json:"slowTickEvery"`
	Server        server.Status     `json:"server"`
	Telemetry     map[string]uint64 `json:"telemetry"`
}

// NewHTTPHandler serves read-only views of the hub. Nothing here touches
// session state; it only reads the hub's status feed and counters.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	loopCfg := cfg.Loop
	if loopCfg.TickRate <= 0 {
		loopCfg = sim.DefaultLoopConfig()
	}

	router := mux.NewRouter()

	router.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}).Methods(nethttp.MethodGet)

	router.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, logger, diagnosticsPayload{
			Status:        "ok",
			ServerTime:    time.Now().UnixMilli(),
			TickRate:      loopCfg.TickRate,
			SlowTickEvery: loopCfg.SlowTickEvery,
			Server:        hub.Feed().Latest(),
			Telemetry:     hub.Metrics().Snapshot(),
		})
	}).Methods(nethttp.MethodGet)

	router.HandleFunc("/sessions/{id}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if mux.Vars(r)["id"] != hub.SessionID() {
			httpError(w, "unknown session", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, logger, hub.Feed().Latest().Session)
	}).Methods(nethttp.MethodGet)

	router.Handle("/ws/session", ws.NewHandler(hub.Feed(), ws.HandlerConfig{Logger: logger}))

	cfg.Observability.Register(router)

	return router
}

func writeJSON(w nethttp.ResponseWriter, logger *log.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
