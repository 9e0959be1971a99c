package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/posecast/internal/config"
	"github.com/BioHazard786/posecast/internal/logging"
	"github.com/BioHazard786/posecast/internal/server"
	"github.com/BioHazard786/posecast/internal/ui"
)

var (
	flagAddr            string
	flagMaxParticipants int
	flagRoomTTL         time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session server",
	Long: `Run the session server: the room API, the WebSocket endpoint that carries
signaling and relayed poses, and a health check.

Examples:
  posecast serve
  posecast serve --addr :9000 --max-participants 4
  PORT=8080 posecast serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(slog.LevelInfo)

		cfg, err := config.Load(config.Options{
			ConfigPath:      flagConfig,
			Addr:            flagAddr,
			MaxParticipants: flagMaxParticipants,
			RoomTTL:         flagRoomTTL,
		})
		if err != nil {
			return err
		}

		ui.PrintInfof("Session server on %s (rooms of up to %d, idle rooms expire after %s)",
			cfg.Serve.Addr, cfg.Serve.MaxParticipants, cfg.Serve.RoomTTL)

		return server.ListenAndServe(cmd.Context(), server.Options{
			Addr:            cfg.Serve.Addr,
			MaxParticipants: cfg.Serve.MaxParticipants,
			RoomTTL:         cfg.Serve.RoomTTL,
			Logger:          slog.Default(),
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagAddr, "addr", "a", "", "Listen address (default :8080)")
	serveCmd.Flags().IntVarP(&flagMaxParticipants, "max-participants", "m", 0, "Participants per room (default 8)")
	serveCmd.Flags().DurationVar(&flagRoomTTL, "room-ttl", 0, "Lifetime of a room nobody has connected to (default 10m)")
}
