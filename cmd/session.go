package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/posecast/internal/capture"
	"github.com/BioHazard786/posecast/internal/config"
	"github.com/BioHazard786/posecast/internal/netdns"
	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/render"
	"github.com/BioHazard786/posecast/internal/session"
	"github.com/BioHazard786/posecast/internal/ui"
)

// clientFlags are shared by create and join.
type clientFlags struct {
	server    string
	userID    string
	fps       float64
	codec     string
	transport string
	stun      string
	turn      string
	turnUser  string
	turnPass  string
	relay     bool
	dropStale bool
	source    string
	snapshots string
	viewer    bool
}

func (f *clientFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.server, "server", "", "Session server URL (default http://localhost:8080)")
	fl.StringVarP(&f.userID, "user", "u", "", "Participant id (default: random)")
	fl.Float64Var(&f.fps, "fps", 0, "Pose broadcast rate in frames per second (default 15)")
	fl.StringVar(&f.codec, "codec", "", "Wire codec: json or msgpack")
	fl.StringVar(&f.transport, "transport", "", "Data channel: mesh (WebRTC) or relay (via server)")
	fl.StringVarP(&f.stun, "stun", "s", "", "Custom STUN server")
	fl.StringVarP(&f.turn, "turn", "t", "", "Custom TURN server")
	fl.StringVar(&f.turnUser, "turn-user", "", "TURN username")
	fl.StringVar(&f.turnPass, "turn-pass", "", "TURN password")
	fl.BoolVarP(&f.relay, "relay", "r", false, "Force TURN relay for peer connections")
	fl.BoolVar(&f.dropStale, "drop-stale", false, "Drop poses older than the last one drawn")
	fl.StringVarP(&f.source, "source", "p", "", "Pose source: synthetic, stdin or file:<path>")
	fl.StringVar(&f.snapshots, "snapshots", "", "Write a PNG per participant here on leave")
	fl.BoolVarP(&f.viewer, "view", "v", false, "Show a live skeleton viewer")
}

func (f *clientFlags) options() config.Options {
	return config.Options{
		ConfigPath:      flagConfig,
		Server:          f.server,
		UserID:          f.userID,
		FPS:             f.fps,
		Codec:           f.codec,
		Transport:       f.transport,
		STUNServer:      f.stun,
		TURNServer:      f.turn,
		TURNUser:        f.turnUser,
		TURNPass:        f.turnPass,
		ForceRelay:      f.relay,
		DropStaleFrames: f.dropStale,
		PoseSource:      f.source,
		SnapshotDir:     f.snapshots,
		Viewer:          f.viewer,
	}
}

func loadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, protocol.NewError("load config", err)
	}
	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

// runSession creates a room when roomID is empty, joins it otherwise, and
// stays in it until interrupted or disconnected.
func runSession(ctx context.Context, opts config.Options, roomID string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	stopSpinner := ui.RunSpinner("Opening pose source...")
	source, err := capture.Open(cfg.PoseSource)
	stopSpinner()
	if err != nil {
		return err
	}
	defer source.Close()

	codec, err := protocol.CodecFor(cfg.Codec)
	if err != nil {
		return err
	}

	ctrl := session.New(
		session.NewAPIClient(cfg.Server, netdns.New()),
		&session.Dialer{Config: cfg},
		session.Options{
			UserID:    cfg.UserID,
			FPS:       cfg.FPS,
			Codec:     codec,
			DropStale: cfg.DropStaleFrames,
			Surfaces:  surfaces(cfg),
			Capture:   source.Capture,
		},
	)

	fmt.Println()
	sp := ui.NewConnectionSpinner("Connecting to server...")
	sp.Start()
	created := roomID == ""
	if created {
		roomID, err = ctrl.Create(ctx)
	} else {
		sp.UpdateMessage("Joining " + roomID + "...")
		err = ctrl.Join(ctx, roomID)
	}
	if err != nil {
		sp.Stop()
		return err
	}
	sp.Success("Connected over " + cfg.Transport + " with the " + codec.Name() + " codec")

	ui.RenderRoomInfo(ui.RoomInfo{
		RoomID:  roomID,
		UserID:  cfg.UserID,
		Command: "posecast join " + roomID,
		Created: created,
	})
	started := time.Now()

	if cfg.Viewer {
		viewCtx, cancel := watchLost(ctx, ctrl)
		viewer := ui.NewViewer("Room "+roomID, func() []ui.Participant { return participants(ctrl) }, ctrl.Updates())
		err = viewer.Run(viewCtx)
		cancel()
	} else {
		err = waitInRoom(ctx, ctrl)
	}

	if cfg.SnapshotDir != "" {
		paths, serr := ctrl.SaveSnapshots(cfg.SnapshotDir)
		for _, p := range paths {
			ui.PrintSuccessf("Saved %s", p)
		}
		if serr != nil {
			ui.PrintWarningf("Some snapshots were not saved: %v", serr)
		}
	}

	if lerr := ctrl.Leave(); lerr != nil {
		ui.PrintWarningf("Leaving the session: %v", lerr)
	}
	renderSummary(ctrl.Stats(), time.Since(started))
	return err
}

// surfaces picks what participants are drawn on: a terminal grid always,
// plus a raster when snapshots are wanted.
func surfaces(cfg *config.Config) render.Factory {
	grid := render.NewGridFactory(session.DefaultGridCols, session.DefaultGridRows)
	if cfg.SnapshotDir == "" {
		return grid
	}
	return render.NewTeeFactory(grid, render.NewRasterFactory())
}

func participants(ctrl *session.Controller) []ui.Participant {
	views := ctrl.View()
	out := make([]ui.Participant, len(views))
	for i, v := range views {
		out[i] = ui.Participant{ID: v.ID, Frames: v.Frames, Stale: v.Stale, Drawing: v.Text}
		if v.LastTimestamp > 0 {
			out[i].LastSeen = time.UnixMilli(v.LastTimestamp)
		}
	}
	return out
}

// watchLost returns a context that also ends when the server connection drops.
func watchLost(ctx context.Context, ctrl *session.Controller) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	lost := ctrl.Lost()
	go func() {
		defer cancel()
		select {
		case <-lost:
			ui.PrintWarning("Connection to the server was lost")
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// waitInRoom prints the participant table whenever membership changes.
func waitInRoom(ctx context.Context, ctrl *session.Controller) error {
	fmt.Println()
	ui.PrintInfo("Broadcasting your pose. Press Ctrl+C to leave.")

	stopWaiting := ui.RunWaitingSpinner("Waiting for other participants...")
	defer func() { stopWaiting() }()

	var shown []string
	lost := ctrl.Lost()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lost:
			return protocol.SessionError("session", fmt.Errorf("connection to the server was lost"))
		case <-ctrl.Updates():
			ps := participants(ctrl)
			ids := make([]string, len(ps))
			for i, p := range ps {
				ids[i] = p.ID
			}
			if slices.Equal(ids, shown) {
				continue
			}
			shown = ids
			stopWaiting()
			fmt.Println()
			ui.RenderParticipantTable(ps)
			if len(ps) == 0 {
				stopWaiting = ui.RunWaitingSpinner("Waiting for other participants...")
			}
		}
	}
}

func renderSummary(st session.Stats, elapsed time.Duration) {
	fmt.Println()
	ui.RenderSessionSummary(ui.IconStats+" Session Summary", ui.SessionSummary{
		RoomID:          st.RoomID,
		Duration:        elapsed,
		Participants:    st.Participants,
		Ticks:           st.Broadcast.Ticks,
		Captured:        st.Broadcast.Captured,
		Sent:            st.Broadcast.Sent,
		CaptureFailures: st.Broadcast.CaptureFailures,
		SendFailures:    st.Broadcast.SendFailures,
		QueueDropped:    st.Broadcast.Dropped,
		Received:        st.Channel.Received,
		Dispatched:      st.Channel.Dispatched,
		ParseErrors:     st.Channel.ParseErrors,
		UnknownTypes:    st.Channel.UnknownTypes,
		SelfEchoes:      st.Channel.SelfEchoes,
		InboundDrops:    st.InboundDropped,
		RoutingMisses:   st.RoutingMisses,
	})
}
