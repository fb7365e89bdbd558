package scheduler

import (
	"context"
	"strings"

	appconfig "github.com/agencyops/renewd/internal/config"
	renewaldomain "github.com/agencyops/renewd/internal/renewal/domain"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLocker),
	fx.Provide(New),
	fx.Provide(func(s *Scheduler) renewaldomain.TickTrigger { return s }),
	fx.Invoke(StartScheduler),
)

// ProvideLocker builds the distributed tick lock when redis is
// configured. Without it the tick stays single-flight per instance
// only.
func ProvideLocker(cfg appconfig.Config) *Locker {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return NewLocker(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	}))
}

func StartScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(runCtx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
