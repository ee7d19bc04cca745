package ocr

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/local/ocrpipeline/internal/metrics"
)

// visionLanguage wraps the PaddleOCR-VL pipeline: a single-shot
// vision-language model with no configurable options.
type visionLanguage struct {
	engines EngineFactory
	engine  Engine
}

func newVisionLanguage(engines EngineFactory) Model {
	return &visionLanguage{engines: engines}
}

func (m *visionLanguage) Name() string { return ModelVisionLanguage }

func (m *visionLanguage) Load(Options) error {
	log.Info().Str("model", m.Name()).Msg("loading model")
	eng, err := m.engines(EngineConfig{Pipeline: m.Name()})
	if err != nil {
		metrics.IncModelLoad(m.Name(), "failure")
		return &ModelLoadError{Model: m.Name(), Err: err}
	}
	metrics.IncModelLoad(m.Name(), "success")
	m.engine = eng
	return nil
}

func (m *visionLanguage) Predict(ctx context.Context, imagePath string, opts Options) ([]PageResult, error) {
	if m.engine == nil {
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

func (m *visionLanguage) FormatOutput(results []PageResult, format string) Output {
	return FormatDefault(results, format)
}
