package ocr

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/ocrpipeline/internal/metrics"
)

// generalOCR wraps the PP-OCRv5 pipeline: general-purpose text
// extraction, no layout awareness.
type generalOCR struct {
	engines EngineFactory
	engine  Engine
	lang    string
}

func newGeneralOCR(engines EngineFactory) Model {
	return &generalOCR{engines: engines}
}

func (m *generalOCR) Name() string { return ModelGeneralOCR }

func (m *generalOCR) Load(opts Options) error {
	lang := opts.Lang()
	log.Info().Str("model", m.Name()).Str("lang", lang).Msg("loading model")
	eng, err := m.engines(EngineConfig{
		Pipeline:                  m.Name(),
		Lang:                      lang,
		UseDocOrientationClassify: opts.Bool("use_doc_orientation_classify"),
		UseDocUnwarping:           opts.Bool("use_doc_unwarping"),
		UseTextlineOrientation:    opts.Bool("use_textline_orientation"),
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

func (m *generalOCR) Predict(ctx context.Context, imagePath string, opts Options) ([]PageResult, error) {
	// Reload when the requested language differs from the loaded one.
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

// FormatOutput ignores block structure: content is the newline-joined
// recognized text across all records, in original order.
func (m *generalOCR) FormatOutput(results []PageResult, format string) Output {
	out := Output{Success: true, Format: format, Results: make([]map[string]any, 0, len(results))}
	var texts []string
	for _, res := range results {
		if !res.Structured() {
			continue
		}
		out.Results = append(out.Results, res.JSON)
		texts = append(texts, res.RecTexts()...)
	}
	out.Content = strings.Join(texts, "\n")
	return out
}
