package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/hansrobothans/logfan/internal/listener"
)

// statusServer exposes liveness and counters over HTTP for ops tooling.
// Record traffic never touches this; it stays on the unix socket.
func statusServer(addr string, lst *listener.Listener) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lst.Stats()); err != nil {
			log.Printf("status: encode stats: %v", err)
		}
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
