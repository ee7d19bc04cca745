package queue

import (
    "context"
    "fmt"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Job is one dequeued dispatch entry. The payload references the job
// input descriptor by storage location; results are never returned
// through the queue.
type Job struct {
    MsgID         string
    InputLocation string
    ContentType   string
}

// RedisQueue implements the async compute dispatch boundary on Redis
// Streams with a consumer group. Submitters call InvokeAsync and receive
// an opaque inference id; workers consume with Dequeue/Ack.
type RedisQueue struct {
    client *redis.Client
    Stream string
    Group  string
}

// NewRedisQueue connects to Redis and ensures the stream and group exist.
func NewRedisQueue(redisURL, stream, group string) (*RedisQueue, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil {
        return nil, fmt.Errorf("parse redis url: %w", err)
    }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil {
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    q := &RedisQueue{client: c, Stream: stream, Group: group}
    // Ensure consumer group exists (MKSTREAM creates stream if missing)
    if err := c.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
        return nil, fmt.Errorf("xgroup create: %w", err)
    }
    return q, nil
}

func isBusyGroupErr(err error) bool {
    if err == nil { return false }
    // go-redis surfaces the server reply as a plain error string
    return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

func (q *RedisQueue) Close() error { return q.client.Close() }

// Ping checks redis connectivity.
func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// InvokeAsync submits a job input by reference and returns the stream
// entry id as the inference identifier. No synchronous result channel
// exists; completion is observed through the output/failure blobs.
func (q *RedisQueue) InvokeAsync(ctx context.Context, inputLocation, contentType string) (string, error) {
    id, err := q.client.XAdd(ctx, &redis.XAddArgs{
        Stream: q.Stream,
        Values: map[string]any{
            "input_location": inputLocation,
            "content_type":   contentType,
        },
    }).Result()
    if err != nil {
        return "", fmt.Errorf("xadd: %w", err)
    }
    return id, nil
}

// Dequeue reads one dispatch entry for the consumer, blocking up to the
// given timeout. A nil job with nil error means nothing was available.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string, block time.Duration) (*Job, error) {
    res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
        Group:    q.Group,
        Consumer: consumer,
        Streams:  []string{q.Stream, ">"},
        Count:    1,
        Block:    block,
    }).Result()
    if err != nil {
        if err == redis.Nil { return nil, nil }
        return nil, err
    }
    if len(res) == 0 || len(res[0].Messages) == 0 { return nil, nil }
    msg := res[0].Messages[0]
    job := &Job{MsgID: msg.ID}
    if v, ok := msg.Values["input_location"].(string); ok { job.InputLocation = v }
    if v, ok := msg.Values["content_type"].(string); ok { job.ContentType = v }
    return job, nil
}

// Ack marks a dispatch entry as processed.
func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
    if msgID == "" { return nil }
    return q.client.XAck(ctx, q.Stream, q.Group, msgID).Err()
}

// Depth returns the number of entries on the stream.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
    return q.client.XLen(ctx, q.Stream).Result()
}
