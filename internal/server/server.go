// Package server runs the session service: the HTTP session API, the
// WebSocket endpoint participants attach to, and a health check.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BioHazard786/posecast/internal/hub"
)

// Options configures ListenAndServe.
type Options struct {
	Addr            string
	MaxParticipants int
	RoomTTL         time.Duration
	Logger          *slog.Logger
}

// ListenAndServe runs a hub and serves it on opts.Addr until ctx is done.
func ListenAndServe(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := hub.NewHub(
		hub.WithMaxParticipants(opts.MaxParticipants),
		hub.WithRoomTTL(opts.RoomTTL),
		hub.WithLogger(logger),
	)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go h.Run(hubCtx)

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           New(h, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server: stopped")
	return nil
}
