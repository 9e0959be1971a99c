package pose

import "fmt"

// KeypointCount is the number of keypoints in a full frame (COCO-17 layout).
const KeypointCount = 17

// ConfidenceThreshold is the minimum score (exclusive) for a keypoint to be visible.
const ConfidenceThreshold = 0.3

// Keypoint indices in the COCO-17 layout.
const (
	Nose = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// Keypoint is a single detected joint. X and Y are normalized to [0,1] and
// Score is the detection confidence.
type Keypoint struct {
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Score float64 `json:"score" msgpack:"score"`
}

// Visible reports whether the keypoint passes the confidence threshold.
// NaN scores are never visible.
func (k Keypoint) Visible() bool {
	return k.Score > ConfidenceThreshold
}

// Frame is one captured pose. A full frame has exactly KeypointCount keypoints;
// an empty frame carries nothing to draw.
type Frame struct {
	Keypoints []Keypoint `json:"keypoints" msgpack:"keypoints"`
}

// Empty reports whether the frame has no keypoints.
func (f Frame) Empty() bool {
	return len(f.Keypoints) == 0
}

// Visible reports whether keypoint i exists and passes the threshold.
func (f Frame) Visible(i int) bool {
	return i >= 0 && i < len(f.Keypoints) && f.Keypoints[i].Visible()
}

// Validate checks the frame shape (empty or exactly KeypointCount keypoints)
// and that every coordinate and score is a finite number in [0,1].
func (f Frame) Validate() error {
	if n := len(f.Keypoints); n != 0 && n != KeypointCount {
		return fmt.Errorf("pose frame has %d keypoints, want 0 or %d", n, KeypointCount)
	}
	for i, kp := range f.Keypoints {
		if !unit(kp.X) || !unit(kp.Y) || !unit(kp.Score) {
			return fmt.Errorf("keypoint %d out of range: x=%v y=%v score=%v", i, kp.X, kp.Y, kp.Score)
		}
	}
	return nil
}

// unit reports whether v is in [0,1]. NaN fails both comparisons.
func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// Clone returns a deep copy so callers can hand a frame across goroutines.
func (f Frame) Clone() Frame {
	if f.Keypoints == nil {
		return Frame{}
	}
	kps := make([]Keypoint, len(f.Keypoints))
	copy(kps, f.Keypoints)
	return Frame{Keypoints: kps}
}

// Uniform builds a full frame with every keypoint at (x, y) with the given score.
func Uniform(x, y, score float64) Frame {
	kps := make([]Keypoint, KeypointCount)
	for i := range kps {
		kps[i] = Keypoint{X: x, Y: y, Score: score}
	}
	return Frame{Keypoints: kps}
}
