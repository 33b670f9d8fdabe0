package observability

import (
	"net/http/pprof"

	"github.com/gorilla/mux"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprof bool
}

// Register mounts the runtime profiling endpoints under /debug/pprof when
// enabled.
func (c Config) Register(router *mux.Router) {
	if !c.EnablePprof {
		return
	}
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)
}
