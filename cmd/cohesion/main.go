package main

import (
	"log/slog"

	"github.com/Souhar-dya/Cohesion/cmd/cohesion/cmd"
	"github.com/Souhar-dya/Cohesion/internal/logging"
)

func main() {
	logging.Init(slog.LevelError)
	cmd.Execute()
}
