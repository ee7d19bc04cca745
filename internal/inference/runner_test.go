package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/local/ocrpipeline/internal/ocr"
)

// memStore is an in-memory blob store recording every put.
type memStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	puts        []string
	downloadErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func objKey(bucket, key string) string { return bucket + "/" + key }

func (s *memStore) DownloadTo(ctx context.Context, bucket, key string, f *os.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downloadErr != nil {
		return s.downloadErr
	}
	data, ok := s.objects[objKey(bucket, key)]
	if !ok {
		return fmt.Errorf("download s3://%s/%s: object not found", bucket, key)
	}
	_, err := f.WriteAt(data, 0)
	return err
}

func (s *memStore) PutTo(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[objKey(bucket, key)] = cp
	s.puts = append(s.puts, key)
	return nil
}

func (s *memStore) GetFrom(ctx context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("get s3://%s/%s: object not found", bucket, key)
	}
	return data, nil
}

func (s *memStore) putsTo(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, k := range s.puts {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

type stubEngine struct {
	results []ocr.PageResult
	err     error
}

func (e *stubEngine) Predict(ctx context.Context, imagePath string) ([]ocr.PageResult, error) {
	return e.results, e.err
}

func stubFactory(results []ocr.PageResult, err error) ocr.EngineFactory {
	return func(cfg ocr.EngineConfig) (ocr.Engine, error) {
		return &stubEngine{results: results, err: err}, nil
	}
}

func invoiceResults() []ocr.PageResult {
	return []ocr.PageResult{{JSON: map[string]any{
		"res": map[string]any{
			"parsing_res_list": []any{
				map[string]any{"block_label": "doc_title", "block_content": "영수증"},
				map[string]any{"block_label": "table", "block_content": "<table><tr><td>10</td></tr></table>"},
			},
		},
	}}}
}

func newTestRunner(store *memStore, results []ocr.PageResult, engineErr error) *Runner {
	return NewRunner(store, ocr.NewRegistry(stubFactory(results, engineErr)), nil)
}

func TestRunSuccessPersistsResult(t *testing.T) {
	store := newMemStore()
	store.objects[objKey("b", "input/u1/j1/a.png")] = []byte("not-a-real-png")
	r := newTestRunner(store, invoiceResults(), nil)

	in := JobInput{
		S3URI:        "s3://b/input/u1/j1/a.png",
		OutputKey:    "output/u1/j1/result.json",
		Model:        ocr.ModelVisionLanguage,
		ModelOptions: ocr.Options{},
	}
	out, err := r.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if !out.Success {
		t.Fatal("expected success")
	}
	if out.Content == "" {
		t.Fatal("expected non-empty content")
	}

	body, ok := store.objects[objKey("b", "output/u1/j1/result.json")]
	if !ok {
		t.Fatal("result artifact missing")
	}
	var persisted struct {
		Success bool   `json:"success"`
		Format  string `json:"format"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &persisted); err != nil {
		t.Fatalf("persisted artifact is not valid JSON: %v", err)
	}
	if !persisted.Success || persisted.Format != "markdown" || persisted.Content == "" {
		t.Fatalf("unexpected artifact: %+v", persisted)
	}
	// Markup and non-ASCII text must survive encoding verbatim.
	if !strings.Contains(string(body), "<table>") {
		t.Fatalf("HTML was escaped in artifact: %s", body)
	}
	if !strings.Contains(string(body), "영수증") {
		t.Fatalf("non-ASCII text was escaped in artifact: %s", body)
	}

	if failures := store.putsTo("failure/"); len(failures) != 0 {
		t.Fatalf("no failure artifact expected, got %v", failures)
	}
}

func TestRunUnknownModelWritesFailure(t *testing.T) {
	store := newMemStore()
	store.objects[objKey("b", "input/u1/j1/a.png")] = []byte("img")
	r := newTestRunner(store, invoiceResults(), nil)

	in := JobInput{
		S3URI:     "s3://b/input/u1/j1/a.png",
		OutputKey: "output/u1/j1/result.json",
		Model:     "not-real",
	}
	_, err := r.Run(context.Background(), in)
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	var unknown *ocr.UnknownModelError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownModelError, got %v", err)
	}

	body, ok := store.objects[objKey("b", "failure/u1/j1/error.json")]
	if !ok {
		t.Fatal("failure artifact missing")
	}
	var failure ocr.Failure
	if err := json.Unmarshal(body, &failure); err != nil {
		t.Fatalf("failure artifact is not valid JSON: %v", err)
	}
	if failure.Success {
		t.Fatal("failure artifact must have success=false")
	}
	if !strings.Contains(failure.Error, "Unknown model") {
		t.Fatalf("failure error = %q", failure.Error)
	}
	if failure.Model != "not-real" {
		t.Fatalf("failure model = %q", failure.Model)
	}

	if _, ok := store.objects[objKey("b", "output/u1/j1/result.json")]; ok {
		t.Fatal("no result artifact expected on failure")
	}
}

func TestParseJobInputMissingURI(t *testing.T) {
	_, err := ParseJobInput([]byte(`{"output_key":"output/u1/j1/result.json"}`))
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if err.Error() != "s3_uri is required" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestParseJobInputDefaults(t *testing.T) {
	in, err := ParseJobInput([]byte(`{"s3_uri":"s3://b/k.png"}`))
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	if in.Model != DefaultModel {
		t.Fatalf("model default = %s", in.Model)
	}
	if in.ModelOptions == nil {
		t.Fatal("options must default to empty mapping")
	}
}

func TestRunDownloadFailureWritesFailure(t *testing.T) {
	store := newMemStore()
	store.downloadErr = errors.New("connection reset")
	r := newTestRunner(store, nil, nil)

	in := JobInput{
		S3URI:     "s3://b/input/u1/j2/a.png",
		OutputKey: "output/u1/j2/result.json",
		Model:     ocr.ModelVisionLanguage,
	}
	_, err := r.Run(context.Background(), in)
	if err == nil {
		t.Fatal("expected download error to propagate")
	}
	if _, ok := store.objects[objKey("b", "failure/u1/j2/error.json")]; !ok {
		t.Fatal("failure artifact missing after download error")
	}
}

func TestRunPredictionFailurePreservesMessage(t *testing.T) {
	store := newMemStore()
	store.objects[objKey("b", "input/u1/j3/a.png")] = []byte("img")
	r := newTestRunner(store, nil, errors.New("tensor shape mismatch"))

	in := JobInput{
		S3URI:     "s3://b/input/u1/j3/a.png",
		OutputKey: "output/u1/j3/result.json",
		Model:     ocr.ModelGeneralOCR,
	}
	_, err := r.Run(context.Background(), in)
	if err == nil {
		t.Fatal("expected prediction error")
	}

	var failure ocr.Failure
	body := store.objects[objKey("b", "failure/u1/j3/error.json")]
	if err := json.Unmarshal(body, &failure); err != nil {
		t.Fatalf("failure artifact invalid: %v", err)
	}
	if !strings.Contains(failure.Error, "tensor shape mismatch") {
		t.Fatalf("original message lost: %q", failure.Error)
	}
}

func TestRunWithoutOutputKeySkipsPersist(t *testing.T) {
	store := newMemStore()
	store.objects[objKey("b", "input/u1/j4/a.png")] = []byte("img")
	r := newTestRunner(store, invoiceResults(), nil)

	out, err := r.Run(context.Background(), JobInput{
		S3URI: "s3://b/input/u1/j4/a.png",
		Model: ocr.ModelVisionLanguage,
	})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if out.Content == "" {
		t.Fatal("expected content in returned output")
	}
	if len(store.puts) != 0 {
		t.Fatalf("no puts expected without output key, got %v", store.puts)
	}
}

func TestRunIdempotentOverwrite(t *testing.T) {
	store := newMemStore()
	store.objects[objKey("b", "input/u1/j5/a.png")] = []byte("img")
	r := newTestRunner(store, invoiceResults(), nil)

	in := JobInput{
		S3URI:     "s3://b/input/u1/j5/a.png",
		OutputKey: "output/u1/j5/result.json",
		Model:     ocr.ModelVisionLanguage,
	}
	if _, err := r.Run(context.Background(), in); err != nil {
		t.Fatalf("first run error = %v", err)
	}
	first := string(store.objects[objKey("b", "output/u1/j5/result.json")])
	if _, err := r.Run(context.Background(), in); err != nil {
		t.Fatalf("second run error = %v", err)
	}
	second := string(store.objects[objKey("b", "output/u1/j5/result.json")])
	if first != second {
		t.Fatalf("re-run must overwrite with equivalent content:\n%s\nvs\n%s", first, second)
	}
	if got := len(store.putsTo("output/")); got != 2 {
		t.Fatalf("expected 2 overwriting puts, got %d", got)
	}
}

func TestRunCarriesMetadata(t *testing.T) {
	store := newMemStore()
	store.objects[objKey("b", "input/u1/j6/scan.png")] = []byte("img")
	r := newTestRunner(store, invoiceResults(), nil)

	in := JobInput{
		S3URI:     "s3://b/input/u1/j6/scan.png",
		OutputKey: "output/u1/j6/result.json",
		Model:     ocr.ModelVisionLanguage,
		Metadata: &JobMetadata{
			JobID:     "j6",
			Filename:  "scan.png",
			S3Key:     "input/u1/j6/scan.png",
			CreatedAt: "2026-01-02T03:04:05Z",
		},
	}
	if _, err := r.Run(context.Background(), in); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	var persisted struct {
		Model    string       `json:"model"`
		Metadata *JobMetadata `json:"metadata"`
	}
	body := store.objects[objKey("b", "output/u1/j6/result.json")]
	if err := json.Unmarshal(body, &persisted); err != nil {
		t.Fatalf("artifact invalid: %v", err)
	}
	if persisted.Model != ocr.ModelVisionLanguage {
		t.Fatalf("model not carried: %+v", persisted)
	}
	if persisted.Metadata == nil || persisted.Metadata.JobID != "j6" {
		t.Fatalf("metadata not carried: %+v", persisted.Metadata)
	}
}

func TestFailureKeyDerivation(t *testing.T) {
	got := FailureKey("output/u1/j1/result.json")
	if got != "failure/u1/j1/error.json" {
		t.Fatalf("FailureKey = %s", got)
	}
}

func TestSplitS3URI(t *testing.T) {
	bucket, key := SplitS3URI("s3://my-bucket/input/u/j/file.png")
	if bucket != "my-bucket" || key != "input/u/j/file.png" {
		t.Fatalf("split = %s, %s", bucket, key)
	}
}
