package capture

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/BioHazard786/posecast/internal/pose"
)

// ErrNoFrame is returned while a stream has not produced any frame yet.
var ErrNoFrame = errors.New("no pose frame available yet")

const maxLineBytes = 1 << 20

func parseLine(line string) (pose.Frame, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return pose.Frame{}, false, nil
	}
	var f pose.Frame
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		return pose.Frame{}, false, err
	}
	if err := f.Validate(); err != nil {
		return pose.Frame{}, false, err
	}
	return f, true, nil
}

// Replay cycles through a fixed list of frames, one per Capture.
type Replay struct {
	mu     sync.Mutex
	frames []pose.Frame
	next   int
}

// NewReplay reads every frame from r up front.
func NewReplay(r io.Reader) (*Replay, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var frames []pose.Frame
	for n := 1; sc.Scan(); n++ {
		f, ok, err := parseLine(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("pose line %d: %w", n, err)
		}
		if ok {
			frames = append(frames, f)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read pose frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, errors.New("pose file contains no frames")
	}
	return &Replay{frames: frames}, nil
}

func (r *Replay) Capture() (pose.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.frames[r.next]
	r.next = (r.next + 1) % len(r.frames)
	return f.Clone(), nil
}

func (r *Replay) Close() error { return nil }

// Stream follows a live feed of JSON lines, such as an estimator piped into
// stdin. Capture returns the most recent frame without waiting for input.
type Stream struct {
	mu     sync.Mutex
	latest pose.Frame
	have   bool
	err    error
	bad    uint64
}

// NewStream starts reading r in the background until EOF.
func NewStream(r io.Reader) *Stream {
	s := &Stream{}
	go s.read(r)
	return s
}

func (s *Stream) read(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		f, ok, err := parseLine(sc.Text())
		s.mu.Lock()
		switch {
		case err != nil:
			s.bad++
		case ok:
			s.latest, s.have = f, true
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.err = sc.Err()
	s.mu.Unlock()
}

func (s *Stream) Capture() (pose.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.have {
		if s.err != nil {
			return pose.Frame{}, s.err
		}
		return pose.Frame{}, ErrNoFrame
	}
	return s.latest.Clone(), nil
}

// Skipped returns how many input lines could not be parsed.
func (s *Stream) Skipped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bad
}

func (s *Stream) Close() error { return nil }
