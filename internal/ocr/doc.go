// Package ocr provides a text detector backed by Tesseract.
//
// The detector treats every recognised word as an object of class "text" so word
// boxes can be explained like any other detection. It wraps the Tesseract engine
// through gosseract/v2 and needs a cgo build; without cgo NewDetector returns
// ErrOCRUnavailable.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A custom tessdata directory can be set with Options.TessdataPrefix.
//
// # Languages
//
// The default language is English ("eng"). Other languages use their Tesseract
// codes, e.g. "deu", "fra" or "chi_sim".
//
// # Concurrency
//
// A Tesseract client is not safe for concurrent use, so every Detect call runs on
// its own client. Saliency workers can therefore share one Detector.
package ocr
