package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"stripe-minter.backend/internal/config"
	"stripe-minter.backend/internal/domain/entities"
	"stripe-minter.backend/pkg/retry"
)

var (
	// ErrLeaseLost is returned when a job is acked or nacked after its
	// visibility window lapsed and it was handed to another consumer.
	ErrLeaseLost = errors.New("job lease lost")
	// ErrJobNotFound is returned when no record exists for a job id
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidPayload is returned when an enqueued payload is not JSON
	ErrInvalidPayload = errors.New("job payload must be valid JSON")
)

const expiredLeaseError = "visibility timeout expired"

// Options configures retry and visibility behaviour
type Options struct {
	MaxAttempts        int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	VisibilityTimeout  time.Duration
	CompletedRetention time.Duration
}

// DefaultOptions returns the queue defaults
func DefaultOptions() Options {
	return Options{
		MaxAttempts:        100,
		BackoffBase:        2 * time.Second,
		VisibilityTimeout:  10 * time.Minute,
		CompletedRetention: 24 * time.Hour,
	}
}

// OptionsFromConfig maps the environment settings onto queue options
func OptionsFromConfig(cfg config.QueueConfig) Options {
	return Options{
		MaxAttempts:        cfg.MaxAttempts,
		BackoffBase:        cfg.BackoffBase,
		BackoffMax:         cfg.BackoffMax,
		VisibilityTimeout:  cfg.VisibilityTimeout,
		CompletedRetention: cfg.CompletedRetention,
	}
}

type keys struct {
	wait      string
	delayed   string
	active    string
	failed    string
	jobPrefix string
}

// newKeys wraps the queue name in a hash tag so every key of one queue maps to
// the same Redis Cluster slot. The scripts derive job keys from a prefix.
func newKeys(name string) keys {
	base := "queue:{" + name + "}"
	return keys{
		wait:      base + ":wait",
		delayed:   base + ":delayed",
		active:    base + ":active",
		failed:    base + ":failed",
		jobPrefix: base + ":job:",
	}
}

// RedisQueue is an at-least-once job queue backed by Redis lists and sorted sets.
// Waiting jobs sit in a list, backoff and leases are tracked in sorted sets
// scored by unix milliseconds, and each job's record is a hash.
type RedisQueue struct {
	client redis.UniversalClient
	name   string
	keys   keys
	opts   Options
	now    func() time.Time
	newID  func() string
}

// NewRedisQueue creates a queue named name on client
func NewRedisQueue(client redis.UniversalClient, name string, opts Options) *RedisQueue {
	defaults := DefaultOptions()
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaults.BackoffBase
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = defaults.VisibilityTimeout
	}
	if opts.CompletedRetention < 0 {
		opts.CompletedRetention = 0
	}

	return &RedisQueue{
		client: client,
		name:   name,
		keys:   newKeys(name),
		opts:   opts,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Name returns the queue name
func (q *RedisQueue) Name() string {
	return q.name
}

// Options returns the effective options
func (q *RedisQueue) Options() Options {
	return q.opts
}

func (q *RedisQueue) jobKey(id string) string {
	return q.keys.jobPrefix + id
}

// Enqueue stores a new waiting job and returns its id
func (q *RedisQueue) Enqueue(ctx context.Context, jobType entities.JobType, payload []byte) (string, error) {
	if !json.Valid(payload) {
		return "", ErrInvalidPayload
	}

	id := q.newID()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(id), map[string]interface{}{
			"type":         string(jobType),
			"payload":      string(payload),
			"attempts":     0,
			"max_attempts": q.opts.MaxAttempts,
			"status":       string(entities.JobStatusWaiting),
			"created_at":   q.now().UnixMilli(),
		})
		pipe.LPush(ctx, q.keys.wait, id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return id, nil
}

// Reserve leases the oldest waiting job. It returns nil, nil when the queue is empty.
func (q *RedisQueue) Reserve(ctx context.Context) (*entities.Job, error) {
	now := q.now()
	deadline := now.Add(q.opts.VisibilityTimeout)

	res, err := reserveScript.Run(ctx, q.client,
		[]string{q.keys.wait, q.keys.delayed, q.keys.active},
		now.UnixMilli(), q.keys.jobPrefix, deadline.UnixMilli(),
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}

	fields := make(map[string]string, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		fields[res[i]] = res[i+1]
	}
	return jobFromHash(fields["id"], fields)
}

// Ack marks a reserved job completed
func (q *RedisQueue) Ack(ctx context.Context, job *entities.Job) error {
	retention := int64(q.opts.CompletedRetention / time.Second)
	ok, err := ackScript.Run(ctx, q.client,
		[]string{q.keys.active, q.jobKey(job.ID)},
		job.ID, strconv.Itoa(job.Attempts), retention, q.now().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("ack %s: %w", job.ID, err)
	}
	if ok == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Nack records a failed delivery. The job is delayed for an exponential backoff
// or, once its attempts are exhausted, moved to the failed set; dead reports
// which of the two happened.
func (q *RedisQueue) Nack(ctx context.Context, job *entities.Job, cause error) (dead bool, err error) {
	now := q.now()
	due := saturatingAdd(now.UnixMilli(), q.BackoffFor(job.Attempts))

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	res, err := nackScript.Run(ctx, q.client,
		[]string{q.keys.active, q.keys.delayed, q.keys.failed, q.jobKey(job.ID)},
		job.ID, strconv.Itoa(job.Attempts), now.UnixMilli(), due, msg,
	).Int()
	if err != nil {
		return false, fmt.Errorf("nack %s: %w", job.ID, err)
	}

	switch res {
	case -1:
		return false, ErrLeaseLost
	case 1:
		job.Status = entities.JobStatusFailed
		job.LastError = msg
		return true, nil
	default:
		job.Status = entities.JobStatusDelayed
		job.LastError = msg
		return false, nil
	}
}

// BackoffFor returns the delay applied after the given attempt failed
func (q *RedisQueue) BackoffFor(attempt int) time.Duration {
	return retry.ExponentialDelay(q.opts.BackoffBase, attempt, q.opts.BackoffMax)
}

// RequeueExpired returns jobs whose lease deadline passed to the wait list.
// Jobs that already used every attempt are failed instead and returned as dead.
func (q *RedisQueue) RequeueExpired(ctx context.Context) (int, []*entities.Job, error) {
	res, err := requeueExpiredScript.Run(ctx, q.client,
		[]string{q.keys.active, q.keys.wait, q.keys.failed},
		q.now().UnixMilli(), q.keys.jobPrefix, expiredLeaseError,
	).Slice()
	if err != nil {
		return 0, nil, fmt.Errorf("requeue expired: %w", err)
	}
	if len(res) == 0 {
		return 0, nil, nil
	}

	requeued, _ := res[0].(int64)
	var dead []*entities.Job
	for _, raw := range res[1:] {
		id, ok := raw.(string)
		if !ok {
			continue
		}
		job, err := q.Get(ctx, id)
		if err != nil {
			return int(requeued), dead, err
		}
		dead = append(dead, job)
	}
	return int(requeued), dead, nil
}

// PromoteDelayed moves delayed jobs that became due to the wait list
func (q *RedisQueue) PromoteDelayed(ctx context.Context) (int, error) {
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.keys.wait, q.keys.delayed},
		q.now().UnixMilli(), q.keys.jobPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed: %w", err)
	}
	return n, nil
}

// Get loads a job record by id
func (q *RedisQueue) Get(ctx context.Context, id string) (*entities.Job, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return jobFromHash(id, fields)
}

// RemoveFailed drops a dead job from the failed set along with its record.
// removed is false when the id was not in the failed set.
func (q *RedisQueue) RemoveFailed(ctx context.Context, id string) (removed bool, err error) {
	var zrem *redis.IntCmd
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		zrem = pipe.ZRem(ctx, q.keys.failed, id)
		pipe.Del(ctx, q.jobKey(id))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("remove failed job %s: %w", id, err)
	}
	return zrem.Val() > 0, nil
}

// Stats returns the number of jobs per state
func (q *RedisQueue) Stats(ctx context.Context) (entities.QueueStats, error) {
	var (
		wait    *redis.IntCmd
		delayed *redis.IntCmd
		active  *redis.IntCmd
		failed  *redis.IntCmd
	)
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		wait = pipe.LLen(ctx, q.keys.wait)
		delayed = pipe.ZCard(ctx, q.keys.delayed)
		active = pipe.ZCard(ctx, q.keys.active)
		failed = pipe.ZCard(ctx, q.keys.failed)
		return nil
	})
	if err != nil {
		return entities.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	return entities.QueueStats{
		Waiting: wait.Val(),
		Delayed: delayed.Val(),
		Active:  active.Val(),
		Failed:  failed.Val(),
	}, nil
}

func jobFromHash(id string, fields map[string]string) (*entities.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrJobNotFound)
	}

	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, fmt.Errorf("job %s: bad attempts %q", id, fields["attempts"])
	}
	maxAttempts, err := strconv.Atoi(fields["max_attempts"])
	if err != nil {
		return nil, fmt.Errorf("job %s: bad max_attempts %q", id, fields["max_attempts"])
	}
	createdMs, _ := strconv.ParseInt(fields["created_at"], 10, 64)

	return &entities.Job{
		ID:          id,
		Type:        entities.JobType(fields["type"]),
		Payload:     json.RawMessage(fields["payload"]),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Status:      entities.JobStatus(fields["status"]),
		CreatedAt:   time.UnixMilli(createdMs).UTC(),
		LastError:   fields["last_error"],
	}, nil
}

func saturatingAdd(nowMs int64, d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms > math.MaxInt64-nowMs {
		return math.MaxInt64
	}
	return nowMs + ms
}
