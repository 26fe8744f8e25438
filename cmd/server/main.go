package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/Souhar-dya/Cohesion/internal/config"
	"github.com/Souhar-dya/Cohesion/internal/execute"
	"github.com/Souhar-dya/Cohesion/internal/logging"
	"github.com/Souhar-dya/Cohesion/internal/relay"
	"github.com/Souhar-dya/Cohesion/internal/server"
)

func main() {
	logging.Init(slog.LevelInfo)

	var flagAddr, flagPiston string
	flag.StringVar(&flagAddr, "addr", "", "listen address (default :8080)")
	flag.StringVar(&flagPiston, "piston", "", "code execution endpoint")
	flag.Parse()

	cfg := config.Load(config.Options{
		ListenAddr:      flagAddr,
		ExecuteEndpoint: flagPiston,
	})

	hub := relay.NewHub()
	go hub.Run()

	exec := execute.New(cfg.ExecuteEndpoint, cfg.ExecuteTimeout)
	handler := server.New(hub, exec)

	slog.Info("relay listening",
		"addr", cfg.ListenAddr,
		"ws", "/ws?room={room}",
		"health", "/health",
		"stats", "/api/stats",
		"metrics", "/metrics",
		"execute", "/api/execute")

	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
