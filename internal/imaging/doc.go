// Package imaging provides image loading, cropping and encoding for the explainer.
//
// All operations work with standard Go image.Image types and use a coordinate system
// where (0,0) is at the top-left corner, X increases rightward, and Y increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. The saliency workers read the same
// cached image from many goroutines; nothing in this package mutates a loaded image.
// ToRGBA always returns a fresh copy that the caller owns.
//
// # Output Formats
//
// Figures are written as JPEG (SaveJPEG) because that is what the explainer's output
// naming promises; in-protocol image payloads are base64 PNG (EncodePNGBase64).
package imaging
