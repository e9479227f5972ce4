// refresh — периодический перезапрос данных поверх robfig/cron.
// Каждое задание выполняется сразу при старте, затем с постоянным интервалом;
// тик пропускается, если предыдущий запуск ещё не завершился.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pribylovaa/go-forum/pkg/log"
)

// Job — одно задание обновления. Ошибка логируется, следующий тик повторит попытку.
type Job func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	fn       Job
}

// Scheduler — планировщик заданий обновления.
type Scheduler struct {
	engine *cron.Cron
	lg     *slog.Logger

	mu      sync.Mutex
	jobs    []job
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New создаёт планировщик; lg == nil — slog.Default().
func New(lg *slog.Logger) *Scheduler {
	if lg == nil {
		lg = slog.Default()
	}

	return &Scheduler{
		engine: cron.New(cron.WithLogger(cronLogger{lg})),
		lg:     lg,
	}
}

// Every регистрирует задание с интервалом не меньше секунды. Вызывается до Start.
func (s *Scheduler) Every(name string, interval time.Duration, fn Job) error {
	const op = "refresh/Every"

	if interval < time.Second {
		return fmt.Errorf("%s: interval %s for %q is below 1s", op, interval, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("%s: scheduler already started", op)
	}

	s.jobs = append(s.jobs, job{name: name, interval: interval, fn: fn})

	return nil
}

// Start запускает задания. Планировщик останавливается при отмене ctx или по Stop.
func (s *Scheduler) Start(ctx context.Context) {
	const op = "refresh/Start"

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	jobs := append([]job(nil), s.jobs...)
	s.mu.Unlock()

	chain := cron.NewChain(cron.Recover(cronLogger{s.lg}), cron.SkipIfStillRunning(cronLogger{s.lg}))

	for _, j := range jobs {
		j := j
		wrapped := chain.Then(cron.FuncJob(func() { s.run(ctx, j) }))

		s.engine.Schedule(cron.Every(j.interval), wrapped)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			wrapped.Run()
		}()
	}

	s.engine.Start()
	s.lg.Info("refresh started", "op", op, "jobs", len(jobs))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop останавливает планировщик и дожидается выполняющихся заданий.
// Повторный вызов безопасен.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	<-s.engine.Stop().Done()
	s.wg.Wait()

	s.lg.Info("refresh stopped", "op", "refresh/Stop")
}

func (s *Scheduler) run(ctx context.Context, j job) {
	if ctx.Err() != nil {
		return
	}

	ctx = log.With(ctx, "job", j.name)

	if err := j.fn(ctx); err != nil {
		log.From(ctx).Warn("refresh job failed", "op", "refresh/run", "err", err)
	}
}

// cronLogger — адаптер slog для cron.Logger.
type cronLogger struct {
	lg *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.lg.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.lg.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
