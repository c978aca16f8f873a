package detection

import (
	"image"
	"math"
	"sort"
)

// Bounds represents a bounding box in pixel coordinates.
//
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right corner.
// A box with X2 <= X1 or Y2 <= Y1 is empty.
type Bounds struct {
	X1 float64 `json:"x1"` // Left edge
	Y1 float64 `json:"y1"` // Top edge
	X2 float64 `json:"x2"` // Right edge
	Y2 float64 `json:"y2"` // Bottom edge
}

// BoundsFromRect converts an integer image rectangle to Bounds.
func BoundsFromRect(r image.Rectangle) Bounds {
	return Bounds{X1: float64(r.Min.X), Y1: float64(r.Min.Y), X2: float64(r.Max.X), Y2: float64(r.Max.Y)}
}

// Width returns the horizontal extent, or 0 for an empty box.
func (b Bounds) Width() float64 {
	return math.Max(0, b.X2-b.X1)
}

// Height returns the vertical extent, or 0 for an empty box.
func (b Bounds) Height() float64 {
	return math.Max(0, b.Y2-b.Y1)
}

// Area returns the box area in square pixels.
func (b Bounds) Area() float64 {
	return b.Width() * b.Height()
}

// Empty reports whether the box has no area.
func (b Bounds) Empty() bool {
	return b.Area() == 0
}

// Intersect returns the overlap of two boxes. The result is empty when they are disjoint.
func (b Bounds) Intersect(o Bounds) Bounds {
	r := Bounds{
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
		X2: math.Min(b.X2, o.X2),
		Y2: math.Min(b.Y2, o.Y2),
	}
	if r.X2 < r.X1 {
		r.X2 = r.X1
	}
	if r.Y2 < r.Y1 {
		r.Y2 = r.Y1
	}
	return r
}

// IoU returns the intersection over union of two boxes, in [0, 1].
func (b Bounds) IoU(o Bounds) float64 {
	inter := b.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Rect returns the smallest integer rectangle covering the box, clipped to clip.
func (b Bounds) Rect(clip image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(b.X1)), int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)), int(math.Ceil(b.Y2)),
	)
	return r.Intersect(clip)
}

// Detection is a single object found by a Detector.
type Detection struct {
	// Bounds is the box around the object.
	Bounds Bounds `json:"bounds"`

	// ClassScores holds one score per class. Its length is the detector's class count.
	ClassScores []float64 `json:"class_scores,omitempty"`

	// Objectness is the probability that the box holds any object at all.
	// Detectors without a separate objectness head report 1.
	Objectness float64 `json:"objectness"`

	// Class is the index of the predicted class.
	Class int `json:"class"`

	// Score is the confidence of the predicted class.
	Score float64 `json:"score"`
}

// NewDetection builds a Detection for a detector that reports a single label per box.
// The class-score vector is expanded with ExpandClassScores and objectness is 1.
func NewDetection(b Bounds, class int, score float64, numClasses int) Detection {
	return Detection{
		Bounds:      b,
		ClassScores: ExpandClassScores(class, score, numClasses),
		Objectness:  1,
		Class:       class,
		Score:       score,
	}
}

// ExpandClassScores builds a class-score vector of length n from a single label.
//
// The reported class receives score; the remaining probability mass (1 - score) is
// divided evenly over the other n-1 classes. A class index outside [0, n) yields a
// vector without a peak. n < 1 returns nil.
func ExpandClassScores(class int, score float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	scores := make([]float64, n)
	if n == 1 {
		scores[0] = score
		return scores
	}
	rest := (1 - score) / float64(n-1)
	if rest < 0 {
		rest = 0
	}
	for i := range scores {
		scores[i] = rest
	}
	if class >= 0 && class < n {
		scores[class] = score
	}
	return scores
}

// CosineSimilarity returns the cosine of the angle between two score vectors.
//
// Vectors of different length are compared over their common prefix. A zero vector
// has no direction and yields 0.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SortByScore orders detections by descending Score, keeping the input order for ties.
func SortByScore(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Score > dets[j].Score
	})
}

// FilterByScore returns the detections whose Score is at least threshold.
func FilterByScore(dets []Detection, threshold float64) []Detection {
	kept := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Score >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}

// NonMaxSuppression removes boxes that overlap a higher-scoring box of the same class
// by more than iouThreshold. The result is sorted by descending score.
func NonMaxSuppression(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) == 0 {
		return dets
	}

	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	SortByScore(sorted)

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Class == d.Class && k.Bounds.IoU(d.Bounds) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
