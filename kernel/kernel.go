package kernel

import (
	"context"

	"github.com/evanphx/tutorkernel/config"
	"github.com/evanphx/tutorkernel/log"
	"github.com/evanphx/tutorkernel/memory"
	hclog "github.com/hashicorp/go-hclog"
)

// Scheduler hands the processor between tasks. Exit never returns to its
// caller.
type Scheduler interface {
	Yield(t *Task)
	Exit(t *Task, code int)
}

// Invoker runs a raw system call on behalf of t.
type Invoker interface {
	InvokeSyscall(ctx context.Context, t *Task, id uint64, args [3]uint64) int64
}

type Kernel struct {
	L      hclog.Logger
	Config *config.Config

	Clock   Clock
	Sched   Scheduler
	Invoker Invoker
	Phys    *memory.PhysicalMemory

	tasks *TaskManager
}

func NewKernel(cfg *config.Config, clock Clock) (*Kernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = NewMonotonicClock()
	}

	k := &Kernel{
		L:      log.L.Named("kernel"),
		Config: cfg,
		Clock:  clock,
		Phys:   memory.NewPhysicalMemory(cfg.Frames),
	}

	k.tasks = NewTaskManager(k.L.Named("sched"), clock)
	k.Sched = k.tasks

	return k, nil
}

func (k *Kernel) Tasks() *TaskManager {
	return k.tasks
}

// Spawn creates a task running prog and queues it as ready.
func (k *Kernel) Spawn(name string, prog Program) (*Task, error) {
	t, err := k.NewTask(name, prog)
	if err != nil {
		return nil, err
	}

	k.tasks.Add(t)

	return t, nil
}

// Run schedules tasks until every one of them has exited.
func (k *Kernel) Run(ctx context.Context) error {
	return k.tasks.Run(ctx)
}

func (k *Kernel) Wait(ctx context.Context, pid int) (ExitStatus, error) {
	return k.tasks.Wait(ctx, pid)
}
