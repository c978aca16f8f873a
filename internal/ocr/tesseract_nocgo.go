//go:build !cgo

package ocr

func newEngine(Options) (engine, error) {
	return nil, ErrOCRUnavailable
}
