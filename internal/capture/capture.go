// Package capture provides local pose sources for the broadcast loop.
//
// Pose estimation itself happens elsewhere. A Source either synthesises a
// moving figure or replays frames produced by an external estimator as JSON
// lines, one {"keypoints":[...]} object per line.
package capture

import (
	"fmt"
	"os"
	"strings"

	"github.com/BioHazard786/posecast/internal/pose"
)

// Source names accepted by Open.
const (
	SourceSynthetic = "synthetic"
	SourceStdin     = "stdin"
	filePrefix      = "file:"
)

// Source yields the current local pose. Capture must not block for longer
// than a frame period.
type Source interface {
	Capture() (pose.Frame, error)
	Close() error
}

// Open returns the source described by name: "synthetic", "stdin" or
// "file:<path>".
func Open(name string) (Source, error) {
	switch {
	case name == "" || name == SourceSynthetic:
		return NewSynthetic(nil), nil
	case name == SourceStdin:
		return NewStream(os.Stdin), nil
	case strings.HasPrefix(name, filePrefix):
		path := strings.TrimPrefix(name, filePrefix)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open pose file: %w", err)
		}
		defer f.Close()
		return NewReplay(f)
	default:
		return nil, fmt.Errorf("unknown pose source %q", name)
	}
}
