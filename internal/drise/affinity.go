package drise

import "github.com/ironsheep/vision-explain/internal/detection"

// Affinity scores how well the detections on a masked image preserve target.
//
// Each masked detection is scored by IoU * cosine(class scores) * objectness and the
// best score is returned. No masked detections means no affinity.
func Affinity(target detection.Detection, masked []detection.Detection) float64 {
	var best float64
	for _, d := range masked {
		iou := target.Bounds.IoU(d.Bounds)
		if iou == 0 {
			continue
		}
		s := iou * detection.CosineSimilarity(target.ClassScores, d.ClassScores) * d.Objectness
		if s > best {
			best = s
		}
	}
	return best
}

// Affinities returns Affinity for every target against the same masked detections.
func Affinities(targets, masked []detection.Detection) []float64 {
	out := make([]float64, len(targets))
	for i, t := range targets {
		out[i] = Affinity(t, masked)
	}
	return out
}
