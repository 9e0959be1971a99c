package main

import (
	"log/slog"

	"github.com/BioHazard786/posecast/cmd"
	"github.com/BioHazard786/posecast/internal/logging"
)

func main() {
	// Participants keep stderr quiet unless LOG_LEVEL says otherwise
	logging.Init(slog.LevelError)
	cmd.Execute()
}
