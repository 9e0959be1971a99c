package pose

// Bone connects two keypoint indices.
type Bone struct {
	A, B int
}

// Bones is the fixed skeleton connection table: limbs, shoulder and hip lines,
// and the two torso sides.
var Bones = [...]Bone{
	// arms
	{LeftShoulder, LeftElbow},
	{LeftElbow, LeftWrist},
	{RightShoulder, RightElbow},
	{RightElbow, RightWrist},
	// legs
	{LeftHip, LeftKnee},
	{LeftKnee, LeftAnkle},
	{RightHip, RightKnee},
	{RightKnee, RightAnkle},
	// shoulder and hip lines
	{LeftShoulder, RightShoulder},
	{LeftHip, RightHip},
	// torso sides
	{LeftShoulder, LeftHip},
	{RightShoulder, RightHip},
}

// VisibleBones returns the bones of f whose endpoints both pass the threshold.
func (f Frame) VisibleBones() []Bone {
	var out []Bone
	for _, b := range Bones {
		if f.Visible(b.A) && f.Visible(b.B) {
			out = append(out, b)
		}
	}
	return out
}
