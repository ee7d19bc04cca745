package ocr

import "context"

// Registered model identifiers.
const (
	ModelGeneralOCR        = "pp-ocrv5"
	ModelDocumentStructure = "pp-structurev3"
	ModelVisionLanguage    = "paddleocr-vl"
)

// Model is the capability contract every OCR backend satisfies.
//
// Load acquires and configures the engine resource; Predict runs
// inference on a local image path, loading (or reloading, when the
// supplied options require a different configuration) transparently;
// FormatOutput normalizes raw results into the unified Output.
type Model interface {
	Name() string
	Load(opts Options) error
	Predict(ctx context.Context, imagePath string, opts Options) ([]PageResult, error)
	FormatOutput(results []PageResult, format string) Output
}
