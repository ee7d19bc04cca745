package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/ocrpipeline/internal/metrics"
	"github.com/local/ocrpipeline/internal/ocr"
)

// BlobStore is the storage capability the runner needs. Buckets are
// explicit because jobs reference their source by full s3 uri.
type BlobStore interface {
	DownloadTo(ctx context.Context, bucket, key string, f *os.File) error
	PutTo(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Preparer converts a downloaded input into something the engines
// accept. The returned cleanup releases any intermediate file.
type Preparer interface {
	Prepare(ctx context.Context, path string) (string, func(), error)
}

// Runner executes one inference job end to end: download, model
// resolution, predict, output normalization, artifact persistence.
type Runner struct {
	store  BlobStore
	models *ocr.Registry
	prep   Preparer
}

// NewRunner constructs a runner. prep may be nil when inputs are always
// images.
func NewRunner(store BlobStore, models *ocr.Registry, prep Preparer) *Runner {
	return &Runner{store: store, models: models, prep: prep}
}

// Run processes one parsed job input. Any failure after parsing is
// persisted as a failure artifact (best effort, when an output key is
// known) and then propagated so dispatcher-level bookkeeping sees it.
func (r *Runner) Run(ctx context.Context, in JobInput) (ocr.Output, error) {
	bucket, key := SplitS3URI(in.S3URI)
	log.Info().Str("model", in.Model).Str("source", in.S3URI).Msg("processing job")

	suffix := path.Ext(key)
	if suffix == "" {
		suffix = ".jpg"
	}
	tmp, err := os.CreateTemp("", "ocr-input-*"+suffix)
	if err != nil {
		return r.fail(ctx, bucket, in, fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := r.store.DownloadTo(ctx, bucket, key, tmp); err != nil {
		tmp.Close()
		return r.fail(ctx, bucket, in, err)
	}
	if err := tmp.Close(); err != nil {
		return r.fail(ctx, bucket, in, fmt.Errorf("close temp file: %w", err))
	}

	imagePath := tmpPath
	if r.prep != nil {
		prepared, cleanup, err := r.prep.Prepare(ctx, tmpPath)
		if err != nil {
			return r.fail(ctx, bucket, in, err)
		}
		if cleanup != nil {
			defer cleanup()
		}
		imagePath = prepared
	}

	model, err := r.models.Get(in.Model)
	if err != nil {
		return r.fail(ctx, bucket, in, err)
	}

	started := time.Now()
	results, err := model.Predict(ctx, imagePath, in.ModelOptions)
	if err != nil {
		return r.fail(ctx, bucket, in, err)
	}
	metrics.ObservePredict(in.Model, time.Since(started))

	out := model.FormatOutput(results, ocr.FormatMarkdown)
	out.Model = in.Model
	out.ModelOptions = in.ModelOptions
	if in.Metadata != nil {
		out.Metadata = in.Metadata
	}

	if in.OutputKey != "" {
		body, err := marshalJSON(out)
		if err != nil {
			return r.fail(ctx, bucket, in, fmt.Errorf("encode result: %w", err))
		}
		if err := r.store.PutTo(ctx, bucket, in.OutputKey, body, "application/json"); err != nil {
			return r.fail(ctx, bucket, in, err)
		}
		log.Info().Str("key", in.OutputKey).Str("model", in.Model).Msg("result uploaded")
	}

	return out, nil
}

// fail persists the failure artifact and returns the original error.
// The artifact write itself is best effort and not re-guarded.
func (r *Runner) fail(ctx context.Context, bucket string, in JobInput, cause error) (ocr.Output, error) {
	log.Error().Err(cause).Str("model", in.Model).Msg("inference failed")
	if in.OutputKey != "" {
		artifact := ocr.Failure{Success: false, Error: cause.Error(), Model: in.Model}
		if body, err := marshalJSON(artifact); err == nil {
			failureKey := FailureKey(in.OutputKey)
			if perr := r.store.PutTo(ctx, bucket, failureKey, body, "application/json"); perr != nil {
				log.Warn().Err(perr).Str("key", failureKey).Msg("failure artifact write failed")
			}
		}
	}
	return ocr.Output{}, cause
}

// marshalJSON encodes without HTML escaping so markup produced by the
// formatters and non-ASCII text survive verbatim.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
