package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Engine is the handle to a loaded model resource: the integration
// contract with the backing OCR engine. What runs behind it (a local
// process, a serving container) is out of scope here.
type Engine interface {
	Predict(ctx context.Context, imagePath string) ([]PageResult, error)
}

// EngineConfig carries the load-time configuration for an engine.
type EngineConfig struct {
	Pipeline                  string // serving pipeline identifier, one per model variant
	Lang                      string // empty means engine default
	UseDocOrientationClassify bool
	UseDocUnwarping           bool
	UseTextlineOrientation    bool
}

// EngineFactory acquires an engine resource for the given configuration.
// Model Load calls go through this; tests inject fakes.
type EngineFactory func(cfg EngineConfig) (Engine, error)

// NewServingFactory returns a factory producing HTTP clients against a
// PaddleOCR serving endpoint.
func NewServingFactory(baseURL string, timeout time.Duration) EngineFactory {
	return func(cfg EngineConfig) (Engine, error) {
		if baseURL == "" {
			return nil, errors.New("missing OCR engine base URL")
		}
		return &servingClient{
			http:    &http.Client{Timeout: timeout},
			baseURL: strings.TrimRight(baseURL, "/"),
			cfg:     cfg,
		}, nil
	}
}

// servingClient talks to one serving pipeline over HTTP.
type servingClient struct {
	http    *http.Client
	baseURL string
	cfg     EngineConfig
}

type servingReq struct {
	File                      string `json:"file"`
	Lang                      string `json:"lang,omitempty"`
	UseDocOrientationClassify bool   `json:"use_doc_orientation_classify"`
	UseDocUnwarping           bool   `json:"use_doc_unwarping"`
	UseTextlineOrientation    bool   `json:"use_textline_orientation"`
}

type servingResp struct {
	Results []map[string]any `json:"results"`
}

func (c *servingClient) Predict(ctx context.Context, imagePath string) ([]PageResult, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read input image: %w", err)
	}

	payload := servingReq{
		File:                      base64.StdEncoding.EncodeToString(data),
		Lang:                      c.cfg.Lang,
		UseDocOrientationClassify: c.cfg.UseDocOrientationClassify,
		UseDocUnwarping:           c.cfg.UseDocUnwarping,
		UseTextlineOrientation:    c.cfg.UseTextlineOrientation,
	}
	body, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/%s", c.baseURL, c.cfg.Pipeline)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("engine %s status %d", c.cfg.Pipeline, resp.StatusCode)
	}

	var r servingResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}

	results := make([]PageResult, 0, len(r.Results))
	for _, res := range r.Results {
		results = append(results, PageResult{JSON: res})
	}
	return results, nil
}
