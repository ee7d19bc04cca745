package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/local/ocrpipeline/internal/ocr"
)

// DefaultModel is used when a job does not name a model.
const DefaultModel = ocr.ModelVisionLanguage

// JobMetadata is submission metadata carried through to the result
// artifact so the job listing surface can read it back.
type JobMetadata struct {
	JobID     string `json:"job_id"`
	Filename  string `json:"filename"`
	S3Key     string `json:"s3_key"`
	CreatedAt string `json:"created_at"`
}

// JobInput is the descriptor one inference invocation consumes. Written
// once by the request handler, read once by the worker.
type JobInput struct {
	S3URI        string       `json:"s3_uri"`
	OutputKey    string       `json:"output_key,omitempty"`
	Model        string       `json:"model,omitempty"`
	ModelOptions ocr.Options  `json:"model_options,omitempty"`
	Metadata     *JobMetadata `json:"metadata,omitempty"`
}

// InvalidInputError reports a missing required job field. It fails fast,
// before any storage or model interaction.
type InvalidInputError struct {
	Field string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// ParseJobInput decodes and validates a job input descriptor, applying
// the model and options defaults.
func ParseJobInput(data []byte) (JobInput, error) {
	var in JobInput
	if err := json.Unmarshal(data, &in); err != nil {
		return JobInput{}, fmt.Errorf("parse job input: %w", err)
	}
	if in.S3URI == "" {
		return JobInput{}, &InvalidInputError{Field: "s3_uri"}
	}
	if in.Model == "" {
		in.Model = DefaultModel
	}
	if in.ModelOptions == nil {
		in.ModelOptions = ocr.Options{}
	}
	return in, nil
}

// SplitS3URI resolves an s3://bucket/key reference into its parts.
func SplitS3URI(uri string) (bucket, key string) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	return bucket, key
}

// FailureKey derives the failure artifact key from an output key:
// output/{user}/{job}/result.json becomes failure/{user}/{job}/error.json.
// This pairing is the binding contract with the status handlers.
func FailureKey(outputKey string) string {
	k := strings.Replace(outputKey, "output/", "failure/", 1)
	return strings.Replace(k, "result.json", "error.json", 1)
}
