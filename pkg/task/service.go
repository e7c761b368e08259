package task

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer submits one-off tasks, such as an operator-requested sync cycle.
// asynq.ErrDuplicateTask stays reachable through errors.Is.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type clientEnqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &clientEnqueuer{client: client}
}

func (e *clientEnqueuer) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(ctx, t, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", t.Type(), err)
	}
	zap.L().Info("[Asynq] task queued",
		zap.String("task_type", t.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return info, nil
}
