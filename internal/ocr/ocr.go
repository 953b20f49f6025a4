// Package ocr extracts text from rendered page images.
package ocr

import "context"

// Recognizer turns one page image into its text content.
type Recognizer interface {
	// Recognize returns the text of a single page image. Transient upstream
	// failures are reported as provider errors so callers can retry.
	Recognize(ctx context.Context, image []byte) (string, error)
}
