package task

import (
	"context"

	"ledgersync/pkg/config"
	"ledgersync/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("asynq:client",
	fx.Provide(registerClient, NewEnqueuer),
)

func registerClient(lc fx.Lifecycle, rdb *redis.Client) *asynq.Client {
	client := asynq.NewClientFromRedisClient(rdb)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}

var Server = fx.Module("asynq:server",
	fx.Provide(registerServerMux),
	fx.Invoke(registerAsynqServer),
)

func registerServerMux() *asynq.ServeMux {
	return asynq.NewServeMux()
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func registerAsynqServer(lc fx.Lifecycle, cfg *config.Config, mux *asynq.ServeMux) {
	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			// Sync cycles are serialized in-process anyway.
			Concurrency:    2,
			RetryDelayFunc: asynq.DefaultRetryDelayFunc,
			Queues: map[string]int{
				taskname.QueueCritical: 6,
				taskname.QueueDefault:  3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				zap.L().Error("asynq task failed", zap.String("task_type", task.Type()), zap.Error(err))
			}),
		},
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := server.Start(mux); err != nil {
				zap.L().Error("[Asynq] Failed to start Asynq server", zap.Error(err))
				return err
			}
			zap.L().Info("[Asynq] Asynq server started", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			server.Shutdown()
			return nil
		},
	})
}

// Periodic holds the tasks registered on the asynq scheduler.
type Periodic struct {
	Cronspec string
	Task     *asynq.Task
	Opts     []asynq.Option
}

type schedulerParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Entries   []Periodic `group:"periodic"`
}

var Scheduler = fx.Module("asynq:scheduler",
	fx.Invoke(registerScheduler),
)

func registerScheduler(p schedulerParams) error {
	scheduler := asynq.NewScheduler(redisOpt(p.Config), &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				zap.L().Warn("[Asynq] periodic enqueue skipped", zap.Error(err))
			}
		},
	})

	for _, e := range p.Entries {
		id, err := scheduler.Register(e.Cronspec, e.Task, e.Opts...)
		if err != nil {
			zap.L().Error("[Asynq] failed to register periodic task", zap.String("task_type", e.Task.Type()), zap.Error(err))
			return err
		}
		zap.L().Info("[Asynq] periodic task registered",
			zap.String("entry_id", id),
			zap.String("task_type", e.Task.Type()),
			zap.String("cron", e.Cronspec),
		)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Shutdown()
			return nil
		},
	})
	return nil
}
