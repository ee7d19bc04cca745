package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/ocrpipeline/internal/api"
    cfgpkg "github.com/local/ocrpipeline/internal/config"
    "github.com/local/ocrpipeline/internal/docprep"
    "github.com/local/ocrpipeline/internal/inference"
    logpkg "github.com/local/ocrpipeline/internal/logger"
    "github.com/local/ocrpipeline/internal/metrics"
    "github.com/local/ocrpipeline/internal/ocr"
    "github.com/local/ocrpipeline/internal/queue"
    "github.com/local/ocrpipeline/internal/statuscheck"
    "github.com/local/ocrpipeline/internal/storage"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    ctx := context.Background()

    // Blob store
    store, err := storage.New(ctx, storage.Options{
        Bucket:    cfg.Storage.Bucket,
        Region:    cfg.Storage.Region,
        Endpoint:  cfg.Storage.Endpoint,
        AccessKey: cfg.Storage.AccessKey,
        SecretKey: cfg.Storage.SecretKey,
    })
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init blob store")
    }

    // Dispatch queue
    rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer rq.Close()

    // Model registry backed by the serving endpoint
    registry := ocr.NewRegistry(ocr.NewServingFactory(cfg.Engine.BaseURL, cfg.Engine.RequestTimeout))

    // Inference worker (optional)
    runWorker := os.Getenv("RUN_WORKER")
    if runWorker == "" || runWorker == "1" || runWorker == "true" {
        runner := inference.NewRunner(store, registry, docprep.New())
        worker := inference.NewWorker(inference.Config{
            Concurrency: cfg.Worker.Concurrency,
            JobTimeout:  cfg.Worker.JobTimeout,
            PollBlock:   cfg.Queue.PollBlock,
        }, rq, store, runner)
        worker.Start()
        defer worker.Stop(context.Background())
    }

    checker := statuscheck.New(statuscheck.Options{
        Redis:     rq,
        Store:     store,
        EngineURL: cfg.Engine.BaseURL,
    })

    handlers := api.New(api.Config{
        DefaultModel:   cfg.Models.Default,
        UploadExpiry:   cfg.Storage.UploadExpiry,
        DownloadExpiry: cfg.Storage.DownloadExpiry,
    }, api.Dependencies{
        Store:  store,
        Queue:  rq,
        Health: checker,
    })
    mux := http.NewServeMux()
    handlers.RegisterRoutes(mux)
    mux.Handle("/metrics", metrics.Handler())

    port := os.Getenv("PORT")
    if port == "" { port = "8080" }
    srv := &http.Server{Addr: ":"+port, Handler: mux}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
    fmt.Println("shutdown complete")
}
