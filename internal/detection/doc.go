// Package detection defines the object-detection model consumed by the saliency tooling.
//
// A Detector turns an image into a list of Detections. Each Detection carries a bounding
// box, an objectness score and a class-score vector. The DRISE algorithm compares the
// detections found on perturbed images with the detections found on the original image,
// so every backend must report class scores as a vector of the same length.
//
// # Coordinate System
//
// Bounds use floating-point pixel coordinates:
//   - Origin (0, 0) at the top-left corner
//   - X increases rightward, Y increases downward
//   - (X1, Y1) is the top-left corner, (X2, Y2) the bottom-right corner
//
// # Class Scores
//
// Many detectors (Faster R-CNN among them) report a single label and score per box
// instead of a full distribution. ExpandClassScores builds the vector used for the
// similarity term by putting the score on the reported class and spreading the
// remainder evenly over the other classes.
//
// # Backends
//
// Backends register a Factory in a Registry under a short name:
//
//   - contour: pure-Go edge and contour detector (always available)
//   - onnx: ONNX Runtime detector, see package onnx
//   - ocr: Tesseract word detector, see package ocr
//
// # Thread Safety
//
// Detect may be called from many goroutines at once; the saliency computation fans
// masked images out over a worker pool. Implementations that wrap non-reentrant
// native handles must serialise or pool them internally.
package detection
