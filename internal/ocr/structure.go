package ocr

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/ocrpipeline/internal/metrics"
)

// documentStructure wraps the PP-StructureV3 pipeline: layout and table
// detection on top of text recognition.
type documentStructure struct {
	engines EngineFactory
	engine  Engine
	lang    string
}

func newDocumentStructure(engines EngineFactory) Model {
	return &documentStructure{engines: engines}
}

func (m *documentStructure) Name() string { return ModelDocumentStructure }

func (m *documentStructure) Load(opts Options) error {
	lang := opts.Lang()
	log.Info().Str("model", m.Name()).Str("lang", lang).Msg("loading model")
	eng, err := m.engines(EngineConfig{
		Pipeline:                  m.Name(),
		Lang:                      lang,
		UseDocOrientationClassify: opts.Bool("use_doc_orientation_classify"),
		UseDocUnwarping:           opts.Bool("use_doc_unwarping"),
	})
	if err != nil {
		metrics.IncModelLoad(m.Name(), "failure")
		return &ModelLoadError{Model: m.Name(), Err: err}
	}
	metrics.IncModelLoad(m.Name(), "success")
	m.engine = eng
	m.lang = lang
	return nil
}

func (m *documentStructure) Predict(ctx context.Context, imagePath string, opts Options) ([]PageResult, error) {
	if m.engine == nil || m.lang != opts.Lang() {
		if err := m.Load(opts); err != nil {
			return nil, err
		}
	}
	results, err := m.engine.Predict(ctx, imagePath)
	if err != nil {
		return nil, &PredictionError{Model: m.Name(), Err: err}
	}
	return results, nil
}

// FormatOutput joins blocks with a blank line between them rather than a
// trailing one after each. Only markdown gets label templates; other
// formats fall back to plain block contents.
func (m *documentStructure) FormatOutput(results []PageResult, format string) Output {
	out := Output{Success: true, Format: format, Results: make([]map[string]any, 0, len(results))}
	var parts []string
	for _, res := range results {
		if !res.Structured() {
			continue
		}
		out.Results = append(out.Results, res.JSON)
		for _, blk := range res.Blocks() {
			if format == FormatMarkdown {
				switch blk.Label {
				case "doc_title":
					parts = append(parts, "# "+blk.Content)
				case "paragraph_title":
					parts = append(parts, "## "+blk.Content)
				default:
					parts = append(parts, blk.Content)
				}
			} else {
				parts = append(parts, blk.Content)
			}
		}
	}
	out.Content = strings.Join(parts, "\n\n")
	return out
}
