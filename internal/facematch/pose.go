package facematch

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/database"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is the coarse head orientation used by enrollment.
type Pose string

const (
	PoseCenter  Pose = "center"
	PoseLeft    Pose = "left"
	PoseRight   Pose = "right"
	PoseUnknown Pose = "unknown"
)

// YawThresholdDegrees separates a frontal face from a turned one.
const YawThresholdDegrees = 12.0

// ParsePose parses a requested enrollment step. Unknown is not a valid request.
func ParsePose(s string) (Pose, error) {
	switch p := Pose(database.NormalizeToken(s)); p {
	case PoseCenter, PoseLeft, PoseRight:
		return p, nil
	}
	return "", apperror.Input("unknown pose %q, want center, left or right", s)
}

// Landmark names. Left and right refer to the image, not the subject.
const (
	LandmarkNoseTip       = "nose_tip"
	LandmarkChin          = "chin"
	LandmarkForehead      = "forehead"
	LandmarkLeftTemple    = "left_temple"
	LandmarkRightTemple   = "right_temple"
	LandmarkLeftEyeOuter  = "left_eye_outer"
	LandmarkRightEyeOuter = "right_eye_outer"
	LandmarkLeftEyeInner  = "left_eye_inner"
	LandmarkRightEyeInner = "right_eye_inner"
	LandmarkLeftMouth     = "left_mouth"
	LandmarkRightMouth    = "right_mouth"
)

// Point is a 2D image position in pixels, y pointing down.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmarks are named facial points detected in one image.
type Landmarks struct {
	Points      map[string]Point `json:"points"`
	ImageWidth  int              `json:"image_width"`
	ImageHeight int              `json:"image_height"`
}

// Angles are head rotation angles in degrees. Positive yaw turns the nose
// toward the right edge of the image.
type Angles struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// faceModel is the canonical face in camera-aligned axes: x toward the image
// right, y down, z away from the camera, nose tip at the origin. The first
// entry is the reference point.
var faceModel = []struct {
	name string
	pos  r3.Vec
}{
	{LandmarkNoseTip, r3.Vec{X: 0, Y: 0, Z: 0}},
	{LandmarkChin, r3.Vec{X: 0, Y: 330, Z: 100}},
	{LandmarkForehead, r3.Vec{X: 0, Y: -330, Z: 100}},
	{LandmarkLeftTemple, r3.Vec{X: -165, Y: -170, Z: 135}},
	{LandmarkRightTemple, r3.Vec{X: 165, Y: -170, Z: 135}},
	{LandmarkLeftEyeOuter, r3.Vec{X: -225, Y: -170, Z: 135}},
	{LandmarkRightEyeOuter, r3.Vec{X: 225, Y: -170, Z: 135}},
	{LandmarkLeftEyeInner, r3.Vec{X: -150, Y: -150, Z: 125}},
	{LandmarkRightEyeInner, r3.Vec{X: 150, Y: -150, Z: 125}},
	{LandmarkLeftMouth, r3.Vec{X: -150, Y: 150, Z: 125}},
	{LandmarkRightMouth, r3.Vec{X: 150, Y: 150, Z: 125}},
}

const (
	positMaxIterations = 100
	positTolerance     = 1e-6
)

// modelPseudoInverse is the 3×(n-1) matrix (AᵀA)⁻¹Aᵀ for A with rows
// faceModel[i]-faceModel[0].
var modelPseudoInverse = func() *mat.Dense {
	n := len(faceModel) - 1
	a := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		d := r3.Sub(faceModel[i+1].pos, faceModel[0].pos)
		a.SetRow(i, []float64{d.X, d.Y, d.Z})
	}
	var ata, inv, pinv mat.Dense
	ata.Mul(a.T(), a)
	if err := inv.Inverse(&ata); err != nil {
		panic("facematch: degenerate face model: " + err.Error())
	}
	pinv.Mul(&inv, a.T())
	return &pinv
}()

// ClassifyPose estimates head orientation from landmarks. A missing landmark,
// degenerate geometry or a solve that does not converge yields PoseUnknown.
func ClassifyPose(lm Landmarks) (Pose, Angles) {
	angles, ok := EstimateAngles(lm)
	if !ok {
		return PoseUnknown, Angles{}
	}
	switch {
	case angles.Yaw > YawThresholdDegrees:
		return PoseRight, angles
	case angles.Yaw < -YawThresholdDegrees:
		return PoseLeft, angles
	default:
		return PoseCenter, angles
	}
}

// EstimateAngles recovers the head rotation with POSIT (pose from orthography
// and scaling with iterations) using focal length = image width and the
// principal point at the image centre.
func EstimateAngles(lm Landmarks) (Angles, bool) {
	if lm.ImageWidth <= 0 || lm.ImageHeight <= 0 {
		return Angles{}, false
	}
	f := float64(lm.ImageWidth)
	cx, cy := float64(lm.ImageWidth)/2, float64(lm.ImageHeight)/2

	n := len(faceModel)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, m := range faceModel {
		p, ok := lm.Points[m.name]
		if !ok || math.IsNaN(p.X) || math.IsNaN(p.Y) {
			return Angles{}, false
		}
		xs[i] = p.X - cx
		ys[i] = p.Y - cy
	}

	eps := make([]float64, n)
	xp := mat.NewVecDense(n-1, nil)
	yp := mat.NewVecDense(n-1, nil)
	var vi, vj mat.VecDense
	var rot [3]r3.Vec
	converged := false

	for iter := 0; iter < positMaxIterations; iter++ {
		for i := 1; i < n; i++ {
			xp.SetVec(i-1, xs[i]*(1+eps[i])-xs[0])
			yp.SetVec(i-1, ys[i]*(1+eps[i])-ys[0])
		}
		vi.MulVec(modelPseudoInverse, xp)
		vj.MulVec(modelPseudoInverse, yp)
		s1, s2 := mat.Norm(&vi, 2), mat.Norm(&vj, 2)
		if s1 < 1e-12 || s2 < 1e-12 {
			return Angles{}, false
		}
		ri := r3.Scale(1/s1, toR3(&vi))
		rj := r3.Scale(1/s2, toR3(&vj))
		rk := r3.Cross(ri, rj)
		if r3.Norm(rk) < 1e-12 {
			return Angles{}, false
		}
		rk = r3.Unit(rk)
		z0 := f / ((s1 + s2) / 2)

		delta := 0.0
		for i := 1; i < n; i++ {
			e := r3.Dot(r3.Sub(faceModel[i].pos, faceModel[0].pos), rk) / z0
			delta = math.Max(delta, math.Abs(e-eps[i]))
			eps[i] = e
		}
		// Re-orthogonalise: j = k × i.
		rot = [3]r3.Vec{ri, r3.Cross(rk, ri), rk}
		if delta < positTolerance {
			converged = true
			break
		}
	}
	if !converged {
		return Angles{}, false
	}

	angles := eulerAngles(rot)
	if math.IsNaN(angles.Yaw) || math.IsNaN(angles.Pitch) || math.IsNaN(angles.Roll) {
		return Angles{}, false
	}
	return angles, true
}

func toR3(v *mat.VecDense) r3.Vec {
	return r3.Vec{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)}
}

// eulerAngles decomposes R = Rz(roll)·Ry(β)·Rx(pitch), rows given, and
// reports yaw = -β so that a nose turned toward the image right is positive.
func eulerAngles(r [3]r3.Vec) Angles {
	sy := math.Max(-1, math.Min(1, -r[2].X))
	beta := math.Asin(sy)
	pitch := math.Atan2(r[2].Y, r[2].Z)
	roll := math.Atan2(r[1].X, r[0].X)
	const deg = 180 / math.Pi
	return Angles{Yaw: -beta * deg, Pitch: pitch * deg, Roll: roll * deg}
}
