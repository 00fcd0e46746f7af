package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
)

const (
	streamKey  = "astra:tasks"
	groupName  = "astra:workers"
	delayedKey = "astra:scheduled"

	taskKeyPrefix = "astra:task:"

	// Task records expire on their own so a crashed worker cannot
	// leak keys forever.
	taskTTL = 24 * time.Hour

	// A message pending longer than this is treated as abandoned and
	// may be claimed by another worker.
	reclaimAfter = 5 * time.Minute
)

var _ driven.TaskQueue = (*Queue)(nil)

// Queue is a task queue on Redis Streams. A consumer group tracks
// which worker holds each indexing task, delayed retries sit in a
// sorted set keyed by due time, and the full task record lives in a
// plain key so status survives stream trimming.
type Queue struct {
	client   *redis.Client
	consumer string
}

// NewQueue binds a queue to the shared Redis client. consumerName
// identifies this worker within the consumer group and must differ
// between instances; when empty a timestamped name is generated.
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("worker-%d", time.Now().UnixNano())
	}

	q := &Queue{client: client, consumer: consumerName}

	err := q.client.XGroupCreateMkStream(context.Background(), streamKey, groupName, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	return q, nil
}

// Enqueue records the task and makes it available to workers. Tasks
// scheduled for the future go to the delayed set and are promoted to
// the stream once due.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
	if task.ScheduledFor.After(time.Now()) {
		pipe.ZAdd(ctx, delayedKey, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
	} else {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey,
			Values: streamFields(task),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available or the context ends.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.DequeueWithTimeout(ctx, 0)
}

// DequeueWithTimeout returns the next task, waiting up to timeout
// seconds. A zero timeout blocks indefinitely. Returns nil, nil when
// nothing becomes available.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	// Promotion is best effort; a failure here only delays retries.
	_ = q.promoteDueTasks(ctx)

	if task, err := q.reclaimStalled(ctx); err == nil && task != nil {
		return task, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    groupName,
		Consumer: q.consumer,
		Streams:  []string{streamKey, ">"},
		Count:    1,
		Block:    time.Duration(timeout) * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.takeMessage(ctx, streams[0].Messages[0])
}

// takeMessage resolves a stream message to its task record, marks the
// task processing and remembers the message ID for a later ack or nack.
// Messages whose task record is gone are acked away.
func (q *Queue) takeMessage(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		q.client.XAck(ctx, streamKey, groupName, msg.ID)
		return nil, nil
	}

	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task data: %w", err)
	}
	if task == nil {
		q.client.XAck(ctx, streamKey, groupName, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()
	q.storeTask(ctx, task)
	q.client.Set(ctx, messageKey(task.ID), msg.ID, taskTTL)
	return task, nil
}

// Ack marks the task completed and removes its message from the stream.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	msgID, err := q.client.Get(ctx, messageKey(taskID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, streamKey, groupName, msgID)
		pipe.XDel(ctx, streamKey, msgID)
	}

	if task, err := q.GetTask(ctx, taskID); err == nil && task != nil {
		task.MarkCompleted()
		data, _ := json.Marshal(task)
		pipe.Set(ctx, taskKeyPrefix+taskID, data, taskTTL)
	}
	pipe.Del(ctx, messageKey(taskID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Nack records a processing failure. Tasks with attempts left are
// rescheduled with backoff through the delayed set; exhausted tasks
// are marked failed.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return errors.New("task not found")
	}

	msgID, _ := q.client.Get(ctx, messageKey(taskID)).Result()

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, streamKey, groupName, msgID)
		pipe.XDel(ctx, streamKey, msgID)
	}

	if task.CanRetry() {
		task.Retry(reason)
		data, _ := json.Marshal(task)
		pipe.Set(ctx, taskKeyPrefix+taskID, data, taskTTL)
		pipe.ZAdd(ctx, delayedKey, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
	} else {
		task.MarkFailed(reason)
		data, _ := json.Marshal(task)
		pipe.Set(ctx, taskKeyPrefix+taskID, data, taskTTL)
	}
	pipe.Del(ctx, messageKey(taskID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack task: %w", err)
	}
	return nil
}

// GetTask returns the stored task record, or nil, nil when unknown.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Ping reports whether Redis is reachable.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the Redis client is owned by the caller.
func (q *Queue) Close() error {
	return nil
}

// promoteDueTasks moves delayed tasks whose due time has passed from
// the sorted set into the stream.
func (q *Queue) promoteDueTasks(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", time.Now().Unix()),
	}).Result()
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	for _, taskID := range due {
		task, err := q.GetTask(ctx, taskID)
		if err != nil || task == nil {
			pipe.ZRem(ctx, delayedKey, taskID)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey,
			Values: streamFields(task),
		})
		pipe.ZRem(ctx, delayedKey, taskID)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// reclaimStalled claims a pending message another worker left idle
// past the reclaim window, so a crashed worker's task gets retried.
func (q *Queue) reclaimStalled(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamKey,
		Group:  groupName,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   reclaimAfter,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   streamKey,
			Group:    groupName,
			Consumer: q.consumer,
			MinIdle:  reclaimAfter,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		msg := claimed[0]
		taskID, ok := msg.Values["task_id"].(string)
		if !ok {
			q.dropMessage(ctx, msg.ID)
			continue
		}
		task, err := q.GetTask(ctx, taskID)
		if err != nil || task == nil {
			q.dropMessage(ctx, msg.ID)
			continue
		}

		task.MarkProcessing()
		q.storeTask(ctx, task)
		q.client.Set(ctx, messageKey(task.ID), msg.ID, taskTTL)
		return task, nil
	}
	return nil, nil
}

func (q *Queue) storeTask(ctx context.Context, task *domain.Task) {
	data, _ := json.Marshal(task)
	q.client.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
}

func (q *Queue) dropMessage(ctx context.Context, msgID string) {
	q.client.XAck(ctx, streamKey, groupName, msgID)
	q.client.XDel(ctx, streamKey, msgID)
}

func messageKey(taskID string) string {
	return taskKeyPrefix + taskID + ":msg"
}

// streamFields is the compact form carried in the stream; the full
// record stays under the task key.
func streamFields(task *domain.Task) map[string]interface{} {
	return map[string]interface{}{
		"task_id":  task.ID,
		"type":     string(task.Type),
		"owner_id": task.OwnerID,
		"priority": task.Priority,
	}
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
