package cloud

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/warden/sym"
)

// DefaultTaskPollInterval is how often pending remote commands are popped.
// Reasonably long so the backend is not bombarded.
const DefaultTaskPollInterval = 10 * time.Second

// TaskHandler consumes one popped task.
type TaskHandler func(ctx context.Context, task Task) error

// TaskPoller periodically pops remote commands and hands them to the
// handler. Fetch and handler failures are logged and swallowed; only
// context cancellation stops the loop.
type TaskPoller struct {
	pop      func(ctx context.Context) ([]Task, error)
	handle   TaskHandler
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewTaskPoller wires a poller to a task source (normally Client.PopTasks)
// and a handler. A zero interval takes DefaultTaskPollInterval.
func NewTaskPoller(pop func(ctx context.Context) ([]Task, error), handle TaskHandler, interval time.Duration, log *zap.SugaredLogger) *TaskPoller {
	if interval <= 0 {
		interval = DefaultTaskPollInterval
	}
	return &TaskPoller{
		pop:      pop,
		handle:   handle,
		interval: interval,
		log:      log,
	}
}

// Run polls until ctx is canceled, then returns the context's error. The
// first poll happens immediately; later ones on the interval.
func (p *TaskPoller) Run(ctx context.Context) error {
	p.log.Debugw("Task polling started",
		"symbol", sym.Cloud,
		"interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Debugw("Task polling canceled", "symbol", sym.Cloud)
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *TaskPoller) pollOnce(ctx context.Context) {
	tasks, err := p.pop(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Warnw("Failed fetching new tasks",
			"symbol", sym.Cloud,
			"error", err)
		return
	}
	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		if err := p.handle(ctx, task); err != nil {
			p.log.Warnw("Failed handling task",
				"symbol", sym.Cloud,
				"task", task.String(),
				"error", err)
		}
	}
}
