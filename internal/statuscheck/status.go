package statuscheck

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "time"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// StoreProber models blob store reachability.
type StoreProber interface {
    Bucket() string
    Exists(ctx context.Context, key string) (bool, error)
}

// Checker aggregates health checks for external dependencies.
type Checker struct {
    redis      RedisPinger
    store      StoreProber
    engineURL  string
    httpClient *http.Client
}

// Options configures the Checker.
type Options struct {
    Redis      RedisPinger
    Store      StoreProber
    EngineURL  string
    HTTPClient *http.Client
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis  Status `json:"redis"`
    S3     Status `json:"s3"`
    Engine Status `json:"engine"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    client := opts.HTTPClient
    if client == nil {
        client = &http.Client{Timeout: 5 * time.Second}
    }
    return &Checker{
        redis:      opts.Redis,
        store:      opts.Store,
        engineURL:  opts.EngineURL,
        httpClient: client,
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis:  c.checkRedis(ctx),
        S3:     c.checkS3(ctx),
        Engine: c.checkEngine(ctx),
    }
}

// OK reports whether every subsystem is ready.
func (s Summary) OK() bool {
    return s.Redis.OK && s.S3.OK && s.Engine.OK
}

// OK runs every check and reports overall readiness.
func (c *Checker) OK(ctx context.Context) bool {
    return c.Summary(ctx).OK()
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "client unavailable"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
    if c.store == nil || c.store.Bucket() == "" {
        return Status{OK: false, Message: "Bucket not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    // A missing probe object still proves the bucket is reachable.
    if _, err := c.store.Exists(ctx, ".statuscheck"); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkEngine(ctx context.Context) Status {
    if c.engineURL == "" {
        return Status{OK: false, Message: "Engine URL missing"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.engineURL, nil)
    resp, err := c.httpClient.Do(req)
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    defer resp.Body.Close()
    if resp.StatusCode >= 500 {
        return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
