package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ragjobs:"

// A claimed job whose claim stamp is older than this is treated as abandoned
// by a crashed worker and returned to the wait list.
const defaultStallTimeout = 30 * time.Second

// RedisQueue is a durable, at-least-once job queue on Redis. Jobs wait in a
// list, move to an active list while claimed (BLMOVE, so a claim is atomic and
// no two workers share a job), and sit in a delayed zset between retry
// attempts. Per-job state lives in a hash.
type RedisQueue struct {
	client       *redis.Client
	policy       RetryPolicy
	pollWait     time.Duration
	stallTimeout time.Duration
}

func NewRedisQueue(redisURL string, policy RetryPolicy, pollWait time.Duration) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if pollWait <= 0 {
		pollWait = 2 * time.Second
	}
	return &RedisQueue{client: client, policy: policy, pollWait: pollWait, stallTimeout: defaultStallTimeout}, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func waitKey() string    { return keyPrefix + "wait" }
func activeKey() string  { return keyPrefix + "active" }
func delayedKey() string { return keyPrefix + "delayed" }
func jobKey(id string) string {
	return keyPrefix + "job:" + id
}

// Enqueue stores the payload and pushes the job onto the wait list. Returns
// the job id.
func (q *RedisQueue) Enqueue(ctx context.Context, payload Payload) (string, error) {
	payload.Version = PayloadVersion
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	id := uuid.New().String()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), map[string]interface{}{
		"payload":  string(data),
		"state":    string(JobStateQueued),
		"attempts": 0,
		"progress": 0,
	})
	pipe.LPush(ctx, waitKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return id, nil
}

// Status returns a job's observable state.
func (q *RedisQueue) Status(ctx context.Context, jobID string) (*Status, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	attempts, _ := strconv.Atoi(fields["attempts"])
	progress, _ := strconv.Atoi(fields["progress"])
	status := &Status{
		ID:       jobID,
		State:    JobState(fields["state"]),
		Attempts: attempts,
		Progress: progress,
		Error:    fields["error"],
	}
	if raw, ok := fields["result"]; ok && raw != "" {
		var res Result
		if err := json.Unmarshal([]byte(raw), &res); err == nil {
			status.Result = &res
		}
	}
	return status, nil
}

// Run claims and processes jobs until ctx is cancelled. Safe to run from
// multiple workers concurrently; BLMOVE hands each job to exactly one of them.
func (q *RedisQueue) Run(ctx context.Context, consumer Consumer) error {
	log.Printf("job worker started (max attempts=%d, backoff=%s)", q.policy.MaxAttempts, q.policy.InitialBackoff)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		q.promoteDelayed(ctx)
		q.recoverStalled(ctx)

		id, err := q.client.BLMove(ctx, waitKey(), activeKey(), "RIGHT", "LEFT", q.pollWait).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("queue claim error: %v", err)
			time.Sleep(q.pollWait)
			continue
		}

		q.processClaimed(ctx, id, consumer)
	}
}

// promoteDelayed moves jobs whose backoff has elapsed back onto the wait list.
func (q *RedisQueue) promoteDelayed(ctx context.Context) {
	now := float64(time.Now().UnixMilli())
	ids, err := q.client.ZRangeByScore(ctx, delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(now, 'f', 0, 64),
	}).Result()
	if err != nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, delayedKey(), id).Result()
		if err != nil || removed == 0 {
			continue // another worker promoted it first
		}
		q.client.LPush(ctx, waitKey(), id)
	}
}

// recoverStalled returns jobs abandoned on the active list to the wait list.
// A job is stalled when its claim stamp is past the stall timeout, or missing
// entirely (the claiming worker died before stamping it). Reprocessing a job
// whose worker crashed mid-flight is the at-least-once trade-off.
func (q *RedisQueue) recoverStalled(ctx context.Context) {
	ids, err := q.client.LRange(ctx, activeKey(), 0, -1).Result()
	if err != nil || len(ids) == 0 {
		return
	}
	cutoff := time.Now().Add(-q.stallTimeout).UnixMilli()
	for _, id := range ids {
		raw, err := q.client.HGet(ctx, jobKey(id), "claimed_at").Result()
		if err == nil {
			claimed, perr := strconv.ParseInt(raw, 10, 64)
			if perr == nil && claimed > cutoff {
				continue
			}
		} else if err != redis.Nil {
			continue
		}
		removed, err := q.client.LRem(ctx, activeKey(), 1, id).Result()
		if err != nil || removed == 0 {
			continue // another worker recovered it first
		}
		q.client.HSet(ctx, jobKey(id), "state", string(JobStateQueued))
		q.client.LPush(ctx, waitKey(), id)
		log.Printf("job %s stalled, returned to queue", id)
	}
}

func (q *RedisQueue) processClaimed(ctx context.Context, id string, consumer Consumer) {
	defer q.client.LRem(ctx, activeKey(), 1, id)

	q.client.HSet(ctx, jobKey(id), "claimed_at", time.Now().UnixMilli())

	raw, err := q.client.HGet(ctx, jobKey(id), "payload").Result()
	if err != nil {
		log.Printf("job %s: failed to load payload: %v", id, err)
		return
	}

	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Unrecoverable: a payload that cannot be decoded will never succeed.
		q.markFailed(ctx, id, fmt.Errorf("invalid job payload: %w", err))
		return
	}

	attempts, err := q.client.HIncrBy(ctx, jobKey(id), "attempts", 1).Result()
	if err != nil {
		log.Printf("job %s: failed to bump attempts: %v", id, err)
		return
	}
	q.client.HSet(ctx, jobKey(id), "state", string(JobStateActive))

	job := &Job{ID: id, Attempts: int(attempts), Payload: payload}
	report := func(percent int) {
		q.client.HSet(ctx, jobKey(id), "progress", percent)
	}

	result, err := consumer.ProcessJob(ctx, job, report)
	if err == nil {
		data, _ := json.Marshal(result)
		q.client.HSet(ctx, jobKey(id), map[string]interface{}{
			"state":  string(JobStateCompleted),
			"result": string(data),
		})
		consumer.JobCompleted(ctx, job, result)
		log.Printf("job %s completed: %d chunks indexed for document %s", id, result.IndexedChunks, result.DocumentID)
		return
	}

	if job.Attempts < q.policy.MaxAttempts {
		delay := q.policy.Delay(job.Attempts)
		log.Printf("job %s attempt %d/%d failed, retrying in %s: %v", id, job.Attempts, q.policy.MaxAttempts, delay, err)
		if serr := q.client.HSet(ctx, jobKey(id), "state", string(JobStateQueued)).Err(); serr != nil {
			log.Printf("job %s: failed to mark queued: %v", id, serr)
		}
		zerr := q.client.ZAdd(ctx, delayedKey(), redis.Z{
			Score:  float64(time.Now().Add(delay).UnixMilli()),
			Member: id,
		}).Err()
		if zerr != nil {
			// The job must not vanish. Requeue without the delay; if that
			// write fails too the job stays on the active list and the
			// stalled-job sweep recovers it.
			log.Printf("job %s: failed to schedule retry, requeueing immediately: %v", id, zerr)
			if perr := q.client.LPush(ctx, waitKey(), id).Err(); perr != nil {
				log.Printf("job %s: failed to requeue, leaving for stall recovery: %v", id, perr)
			}
		}
		return
	}

	q.markFailed(ctx, id, err)
	consumer.JobFailed(ctx, job, err)
	log.Printf("job %s failed after %d attempts: %v", id, job.Attempts, err)
}

func (q *RedisQueue) markFailed(ctx context.Context, id string, err error) {
	q.client.HSet(ctx, jobKey(id), map[string]interface{}{
		"state": string(JobStateFailed),
		"error": err.Error(),
	})
}
