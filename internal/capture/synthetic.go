package capture

import (
	"math"
	"time"

	"github.com/BioHazard786/posecast/internal/pose"
)

// rest is a standing figure in normalized coordinates.
var rest = [pose.KeypointCount][2]float64{
	pose.Nose:          {0.50, 0.20},
	pose.LeftEye:       {0.48, 0.18},
	pose.RightEye:      {0.52, 0.18},
	pose.LeftEar:       {0.46, 0.19},
	pose.RightEar:      {0.54, 0.19},
	pose.LeftShoulder:  {0.42, 0.32},
	pose.RightShoulder: {0.58, 0.32},
	pose.LeftElbow:     {0.38, 0.45},
	pose.RightElbow:    {0.62, 0.45},
	pose.LeftWrist:     {0.36, 0.57},
	pose.RightWrist:    {0.64, 0.57},
	pose.LeftHip:       {0.45, 0.58},
	pose.RightHip:      {0.55, 0.58},
	pose.LeftKnee:      {0.45, 0.74},
	pose.RightKnee:     {0.55, 0.74},
	pose.LeftAnkle:     {0.45, 0.90},
	pose.RightAnkle:    {0.55, 0.90},
}

// Synthetic animates a figure waving both arms, one cycle every two
// seconds. Ears drop below the confidence threshold every other cycle so
// viewers see partial frames too.
type Synthetic struct {
	now   func() time.Time
	start time.Time
}

// NewSynthetic returns a synthetic source. now defaults to time.Now.
func NewSynthetic(now func() time.Time) *Synthetic {
	if now == nil {
		now = time.Now
	}
	return &Synthetic{now: now, start: now()}
}

func (s *Synthetic) Capture() (pose.Frame, error) {
	t := s.now().Sub(s.start).Seconds()
	phase := math.Sin(t * math.Pi)

	kps := make([]pose.Keypoint, pose.KeypointCount)
	for i, p := range rest {
		kps[i] = pose.Keypoint{X: p[0], Y: p[1], Score: 0.9}
	}

	// Arms swing about the shoulders.
	swing := func(shoulder, elbow, wrist int, dir float64) {
		sx, sy := rest[shoulder][0], rest[shoulder][1]
		angle := math.Pi/2 - dir*phase*math.Pi/3
		kps[elbow].X = sx + dir*0.13*math.Cos(angle)
		kps[elbow].Y = sy + 0.13*math.Sin(angle)
		kps[wrist].X = sx + dir*0.25*math.Cos(angle)
		kps[wrist].Y = sy + 0.25*math.Sin(angle)
	}
	swing(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, -1)
	swing(pose.RightShoulder, pose.RightElbow, pose.RightWrist, 1)

	if int(t/2)%2 == 1 {
		kps[pose.LeftEar].Score = 0.1
		kps[pose.RightEar].Score = 0.1
	}
	return pose.Frame{Keypoints: kps}, nil
}

func (s *Synthetic) Close() error { return nil }
