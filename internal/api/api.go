package api

import (
    "context"
    "encoding/base64"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/url"
    "sort"
    "strings"
    "time"

    "github.com/gabriel-vasile/mimetype"
    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/ocrpipeline/internal/inference"
    "github.com/local/ocrpipeline/internal/metrics"
    "github.com/local/ocrpipeline/internal/ocr"
    "github.com/local/ocrpipeline/internal/storage"
)

// BlobStore is the storage capability the handlers consume.
type BlobStore interface {
    Bucket() string
    Get(ctx context.Context, key string) ([]byte, error)
    Put(ctx context.Context, key string, data []byte, contentType string) error
    Exists(ctx context.Context, key string) (bool, error)
    List(ctx context.Context, prefix string) ([]string, error)
    Delete(ctx context.Context, key string) error
    PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
    PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
    FindKey(ctx context.Context, key string) (string, error)
}

// Dispatcher submits job inputs by reference for asynchronous processing.
type Dispatcher interface {
    InvokeAsync(ctx context.Context, inputLocation, contentType string) (string, error)
}

// HealthChecker reports readiness of external dependencies.
type HealthChecker interface {
    OK(ctx context.Context) bool
}

// Config defines request handling behavior.
type Config struct {
    DefaultModel   string
    UploadExpiry   time.Duration
    DownloadExpiry time.Duration
}

type Dependencies struct {
    Store  BlobStore
    Queue  Dispatcher
    Health HealthChecker
}

type API struct {
    cfg  Config
    deps Dependencies
}

func New(cfg Config, deps Dependencies) *API {
    if cfg.DefaultModel == "" { cfg.DefaultModel = inference.DefaultModel }
    if cfg.UploadExpiry <= 0 { cfg.UploadExpiry = 5 * time.Minute }
    if cfg.DownloadExpiry <= 0 { cfg.DownloadExpiry = time.Hour }
    return &API{cfg: cfg, deps: deps}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", a.handleHealth)
    mux.HandleFunc("/ocr", a.handleSubmit)
    mux.HandleFunc("/ocr/", a.handleStatus)
    mux.HandleFunc("/jobs", a.handleJobList)
    mux.HandleFunc("/uploads/presign", a.handlePresign)
    mux.HandleFunc("/images/", a.handleImage)
}

func userID(r *http.Request) string {
    if u := strings.TrimSpace(r.Header.Get("X-User-ID")); u != "" { return u }
    return "anonymous"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    cors(w)
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
    writeJSON(w, status, map[string]string{"error": msg})
}

func writeInternalError(w http.ResponseWriter, err error) {
    log.Error().Err(err).Msg("request failed")
    writeJSON(w, http.StatusInternalServerError, map[string]string{
        "error":   "Internal server error",
        "message": err.Error(),
    })
}

func cors(w http.ResponseWriter) {
    h := w.Header()
    h.Set("Access-Control-Allow-Origin", "*")
    h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-User-ID")
    h.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
}

func preflight(w http.ResponseWriter, r *http.Request) bool {
    if r.Method != http.MethodOptions { return false }
    cors(w)
    w.WriteHeader(http.StatusNoContent)
    return true
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
    if preflight(w, r) { return }
    if a.deps.Health != nil && !a.deps.Health.OK(r.Context()) {
        writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
        return
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitReq struct {
    Filename    string      `json:"filename"`
    ImageBase64 string      `json:"image_base64"`
    S3Key       string      `json:"s3_key"`
    Model       string      `json:"model"`
    Options     ocr.Options `json:"options"`
}

type submitResp struct {
    JobID       string `json:"job_id"`
    Status      string `json:"status"`
    OutputKey   string `json:"output_key"`
    InferenceID string `json:"inference_id"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
    if preflight(w, r) { return }
    if r.Method != http.MethodPost {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    defer r.Body.Close()

    var req submitReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid json")
        return
    }
    if req.Filename == "" || (req.ImageBase64 == "" && req.S3Key == "") {
        writeError(w, http.StatusBadRequest, "filename and (image_base64 or s3_key) are required")
        return
    }

    user := userID(r)
    jobID := uuid.NewString()
    ctx := r.Context()

    inputKey := req.S3Key
    if req.ImageBase64 != "" {
        data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
        if err != nil {
            writeError(w, http.StatusBadRequest, "image_base64 is not valid base64")
            return
        }
        inputKey = fmt.Sprintf("input/%s/%s/%s", user, jobID, req.Filename)
        contentType := mimetype.Detect(data).String()
        if err := a.deps.Store.Put(ctx, inputKey, data, contentType); err != nil {
            writeInternalError(w, err)
            return
        }
    }

    model := req.Model
    if model == "" { model = a.cfg.DefaultModel }
    options := req.Options
    if options == nil { options = ocr.Options{} }

    outputKey := fmt.Sprintf("output/%s/%s/result.json", user, jobID)
    descriptor := inference.JobInput{
        S3URI:        fmt.Sprintf("s3://%s/%s", a.deps.Store.Bucket(), inputKey),
        OutputKey:    outputKey,
        Model:        model,
        ModelOptions: options,
        Metadata: &inference.JobMetadata{
            JobID:     jobID,
            Filename:  req.Filename,
            S3Key:     inputKey,
            CreatedAt: time.Now().UTC().Format(time.RFC3339),
        },
    }
    payload, err := json.Marshal(descriptor)
    if err != nil {
        writeInternalError(w, err)
        return
    }

    descriptorKey := fmt.Sprintf("input/%s/%s/inference-input.json", user, jobID)
    if err := a.deps.Store.Put(ctx, descriptorKey, payload, "application/json"); err != nil {
        writeInternalError(w, err)
        return
    }

    location := fmt.Sprintf("s3://%s/%s", a.deps.Store.Bucket(), descriptorKey)
    inferenceID, err := a.deps.Queue.InvokeAsync(ctx, location, "application/json")
    if err != nil {
        writeInternalError(w, err)
        return
    }

    metrics.IncSubmitted(model)
    log.Info().Str("job_id", jobID).Str("user", user).Str("model", model).Msg("job submitted")
    writeJSON(w, http.StatusAccepted, submitResp{
        JobID:       jobID,
        Status:      "processing",
        OutputKey:   outputKey,
        InferenceID: inferenceID,
    })
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
    if preflight(w, r) { return }
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }

    jobID := strings.TrimPrefix(r.URL.Path, "/ocr/")
    if jobID == "" || strings.Contains(jobID, "/") {
        writeError(w, http.StatusBadRequest, "job id is required")
        return
    }
    user := userID(r)
    ctx := r.Context()

    resultKey := fmt.Sprintf("output/%s/%s/result.json", user, jobID)
    if body, err := a.deps.Store.Get(ctx, resultKey); err == nil {
        writeJSON(w, http.StatusOK, map[string]any{
            "status": "completed",
            "result": json.RawMessage(body),
        })
        return
    } else if !errors.Is(err, storage.ErrNotFound) {
        writeInternalError(w, err)
        return
    }

    failureKey := fmt.Sprintf("failure/%s/%s/error.json", user, jobID)
    if body, err := a.deps.Store.Get(ctx, failureKey); err == nil {
        var failure ocr.Failure
        msg := "OCR processing failed"
        if err := json.Unmarshal(body, &failure); err == nil && failure.Error != "" {
            msg = failure.Error
        }
        writeJSON(w, http.StatusOK, map[string]string{"status": "failed", "error": msg})
        return
    } else if !errors.Is(err, storage.ErrNotFound) {
        writeInternalError(w, err)
        return
    }

    writeJSON(w, http.StatusOK, map[string]string{"status": "processing"})
}

type jobEntry struct {
    ID           string      `json:"id"`
    Filename     string      `json:"filename"`
    S3Key        string      `json:"s3Key"`
    CreatedAt    string      `json:"createdAt"`
    Model        string      `json:"model"`
    ModelOptions ocr.Options `json:"modelOptions"`
    Status       string      `json:"status"`
}

func (a *API) handleJobList(w http.ResponseWriter, r *http.Request) {
    if preflight(w, r) { return }
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    user := userID(r)
    ctx := r.Context()

    keys, err := a.deps.Store.List(ctx, fmt.Sprintf("output/%s/", user))
    if err != nil {
        writeInternalError(w, err)
        return
    }

    jobs := make([]jobEntry, 0, len(keys))
    for _, key := range keys {
        if !strings.HasSuffix(key, "/result.json") { continue }
        body, err := a.deps.Store.Get(ctx, key)
        if err != nil {
            log.Warn().Err(err).Str("key", key).Msg("skipping unreadable result")
            continue
        }
        var artifact struct {
            Model        string                 `json:"model"`
            ModelOptions ocr.Options            `json:"model_options"`
            Metadata     *inference.JobMetadata `json:"metadata"`
        }
        if err := json.Unmarshal(body, &artifact); err != nil || artifact.Metadata == nil {
            continue
        }
        jobs = append(jobs, jobEntry{
            ID:           artifact.Metadata.JobID,
            Filename:     artifact.Metadata.Filename,
            S3Key:        artifact.Metadata.S3Key,
            CreatedAt:    artifact.Metadata.CreatedAt,
            Model:        artifact.Model,
            ModelOptions: artifact.ModelOptions,
            Status:       "completed",
        })
    }

    sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt > jobs[j].CreatedAt })
    writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

type presignReq struct {
    Filename    string `json:"filename"`
    ContentType string `json:"content_type"`
}

func (a *API) handlePresign(w http.ResponseWriter, r *http.Request) {
    if preflight(w, r) { return }
    if r.Method != http.MethodPost {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    defer r.Body.Close()

    var req presignReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid json")
        return
    }
    if req.Filename == "" { req.Filename = "upload" }
    if req.ContentType == "" { req.ContentType = "application/octet-stream" }

    uploadID := uuid.NewString()
    key := fmt.Sprintf("uploads/%s/%s", uploadID, req.Filename)
    uploadURL, err := a.deps.Store.PresignPut(r.Context(), key, req.ContentType, a.cfg.UploadExpiry)
    if err != nil {
        writeInternalError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, map[string]string{
        "upload_url": uploadURL,
        "s3_key":     key,
        "upload_id":  uploadID,
    })
}

func (a *API) handleImage(w http.ResponseWriter, r *http.Request) {
    if preflight(w, r) { return }

    rawKey := strings.TrimPrefix(r.URL.Path, "/images/")
    key, err := url.PathUnescape(rawKey)
    if err != nil || key == "" {
        writeError(w, http.StatusBadRequest, "image key is required")
        return
    }

    switch r.Method {
    case http.MethodGet:
        a.imageURL(w, r, key)
    case http.MethodDelete:
        a.imageDelete(w, r, key)
    default:
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
    }
}

// imageURL resolves the stored key across Unicode normalization variants
// and returns a presigned download URL.
func (a *API) imageURL(w http.ResponseWriter, r *http.Request, key string) {
    ctx := r.Context()
    found, err := a.deps.Store.FindKey(ctx, key)
    if errors.Is(err, storage.ErrNotFound) {
        writeError(w, http.StatusNotFound, "Image not found")
        return
    }
    if err != nil {
        writeInternalError(w, err)
        return
    }

    downloadURL, err := a.deps.Store.PresignGet(ctx, found, a.cfg.DownloadExpiry)
    if err != nil {
        writeInternalError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, map[string]string{"url": downloadURL, "s3_key": found})
}

// imageDelete removes the input object and, when a job_id is supplied,
// the whole output folder for that job.
func (a *API) imageDelete(w http.ResponseWriter, r *http.Request, key string) {
    ctx := r.Context()
    deleted := 0

    found, err := a.deps.Store.FindKey(ctx, key)
    if err == nil {
        if err := a.deps.Store.Delete(ctx, found); err != nil {
            writeInternalError(w, err)
            return
        }
        deleted++
    } else if !errors.Is(err, storage.ErrNotFound) {
        writeInternalError(w, err)
        return
    }

    if jobID := r.URL.Query().Get("job_id"); jobID != "" {
        user := userID(r)
        prefix := fmt.Sprintf("output/%s/%s/", user, jobID)
        keys, err := a.deps.Store.List(ctx, prefix)
        if err != nil {
            writeInternalError(w, err)
            return
        }
        for _, k := range keys {
            if err := a.deps.Store.Delete(ctx, k); err != nil {
                writeInternalError(w, err)
                return
            }
            deleted++
        }
    }

    log.Info().Str("key", key).Int("deleted", deleted).Msg("image deleted")
    writeJSON(w, http.StatusOK, map[string]any{
        "deleted": deleted,
        "message": fmt.Sprintf("Deleted %d objects", deleted),
    })
}
