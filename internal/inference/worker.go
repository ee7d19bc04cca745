package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/ocrpipeline/internal/metrics"
	"github.com/local/ocrpipeline/internal/queue"
)

// Queue is the dispatch capability the worker consumes.
type Queue interface {
	Dequeue(ctx context.Context, consumer string, block time.Duration) (*queue.Job, error)
	Ack(ctx context.Context, msgID string) error
	Depth(ctx context.Context) (int64, error)
}

// DescriptorStore fetches job input descriptors by storage location.
type DescriptorStore interface {
	GetFrom(ctx context.Context, bucket, key string) ([]byte, error)
}

// Config defines worker pool behavior.
type Config struct {
	Concurrency int
	JobTimeout  time.Duration
	PollBlock   time.Duration
}

// Worker consumes dispatch entries and runs inference jobs.
type Worker struct {
	cfg    Config
	q      Queue
	store  DescriptorStore
	runner *Runner
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewWorker(cfg Config, q Queue, store DescriptorStore, runner *Runner) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.PollBlock <= 0 {
		cfg.PollBlock = 2 * time.Second
	}
	return &Worker{cfg: cfg, q: q, store: store, runner: runner, stop: make(chan struct{})}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
	go w.depthLoop()
}

func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()
	consumer := fmt.Sprintf("worker-%d", id)
	log.Info().Int("worker", id).Msg("inference worker started")
	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("inference worker stopped")
			return
		default:
		}

		job, err := w.q.Dequeue(context.Background(), consumer, w.cfg.PollBlock)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if job == nil {
			continue
		}
		w.handle(job)
	}
}

func (w *Worker) handle(job *queue.Job) {
	// Ack regardless of outcome: terminal state lives in the artifacts,
	// not the queue, and failed jobs are not redelivered.
	defer func() { _ = w.q.Ack(context.Background(), job.MsgID) }()

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.JobTimeout)
	defer cancel()

	bucket, key := SplitS3URI(job.InputLocation)
	raw, err := w.store.GetFrom(ctx, bucket, key)
	if err != nil {
		log.Error().Err(err).Str("location", job.InputLocation).Msg("fetch job input failed")
		return
	}

	in, err := ParseJobInput(raw)
	if err != nil {
		// No artifact: the output key is unknown before parsing succeeds.
		log.Error().Err(err).Str("location", job.InputLocation).Msg("invalid job input")
		return
	}

	if _, err := w.runner.Run(ctx, in); err != nil {
		metrics.IncProcessed(in.Model, "failure")
		return
	}
	metrics.IncProcessed(in.Model, "success")
}

func (w *Worker) depthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if n, err := w.q.Depth(ctx); err == nil {
				metrics.SetQueueDepth(n)
			}
			cancel()
		}
	}
}
