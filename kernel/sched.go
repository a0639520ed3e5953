package kernel

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/pkg/ilist"
	"github.com/evanphx/tutorkernel/pkg/waiter"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

var (
	ErrUnknownTask    = errors.New("unknown task")
	ErrAlreadyRunning = errors.New("scheduler already running")
)

const (
	_ waiter.EventType = iota
	TaskExited
)

// TaskManager is a cooperative round-robin scheduler. Every task runs on its
// own goroutine, but only the current one is ever unblocked: control moves
// by explicitly waking the next task and parking the previous one.
type TaskManager struct {
	L     hclog.Logger
	clock Clock

	mu        sync.Mutex
	highWater int
	tasks     map[int]*Task
	ready     ilist.List
	current   *Task
	live      int
	running   bool
	idle      chan struct{}

	events waiter.Waiter
}

func NewTaskManager(l hclog.Logger, clock Clock) *TaskManager {
	return &TaskManager{
		L:     l,
		clock: clock,
		tasks: make(map[int]*Task),
		idle:  make(chan struct{}),
	}
}

func (tm *TaskManager) assignPid(t *Task) int {
	for i := 1; i <= tm.highWater; i++ {
		if _, ok := tm.tasks[i]; !ok {
			t.Pid = i
			tm.tasks[i] = t
			return i
		}
	}

	tm.highWater++
	pid := tm.highWater
	tm.tasks[pid] = t
	t.Pid = pid

	return pid
}

// Add assigns t a pid, queues it as ready and parks its goroutine until it is
// first scheduled.
func (tm *TaskManager) Add(t *Task) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	pid := tm.assignPid(t)

	t.setStatus(abi.Ready)
	tm.ready.PushBack(t)
	tm.live++

	go tm.taskMain(t)

	tm.L.Trace("task-added", "pid", pid, "name", t.Name)

	return pid
}

func (tm *TaskManager) Lookup(pid int) (*Task, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t, ok := tm.tasks[pid]
	return t, ok
}

// Tasks returns every known task ordered by pid.
func (tm *TaskManager) Tasks() []*Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var out []*Task
	for pid := 1; pid <= tm.highWater; pid++ {
		if t, ok := tm.tasks[pid]; ok {
			out = append(out, t)
		}
	}

	return out
}

func (tm *TaskManager) Current() *Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return tm.current
}

func (tm *TaskManager) taskMain(t *Task) {
	<-t.wake
	tm.resume(t)

	ctx := SetTask(context.Background(), t)
	t.program(&UserContext{ctx: ctx, task: t})

	t.Kernel.Sched.Exit(t, 0)
}

// resume runs on t's goroutine each time it is handed the processor.
func (tm *TaskManager) resume(t *Task) {
	if t.Status() == abi.Exited {
		panic(fmt.Sprintf("resuming exited task pid=%d", t.Pid))
	}
}

// switchTo makes next current and wakes it. Caller holds mu.
func (tm *TaskManager) switchTo(next *Task) {
	next.markRunning(tm.clock.Micros())
	tm.current = next

	tm.L.Trace("task-switch", "pid", next.Pid)

	select {
	case next.wake <- struct{}{}:
	default:
		panic(fmt.Sprintf("task pid=%d woken twice", next.Pid))
	}
}

// Run starts the first ready task and returns once every task has exited.
func (tm *TaskManager) Run(ctx context.Context) error {
	tm.mu.Lock()

	if tm.running {
		tm.mu.Unlock()
		return ErrAlreadyRunning
	}

	first := tm.ready.PopFront()
	if first == nil {
		tm.mu.Unlock()
		return nil
	}

	tm.running = true
	tm.switchTo(first.(*Task))

	tm.mu.Unlock()

	select {
	case <-tm.idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Yield suspends t, the current task, and runs the next ready task. It
// returns when t is scheduled again.
func (tm *TaskManager) Yield(t *Task) {
	tm.mu.Lock()

	if tm.current != t {
		tm.mu.Unlock()
		panic(fmt.Sprintf("yield from non-current task pid=%d", t.Pid))
	}

	next := tm.ready.PopFront()
	if next == nil {
		tm.mu.Unlock()
		return
	}

	t.setStatus(abi.Ready)
	tm.ready.PushBack(t)
	tm.switchTo(next.(*Task))

	tm.mu.Unlock()

	<-t.wake
	tm.resume(t)
}

// Exit marks t exited with code, frees its memory and runs the next ready
// task. It does not return.
func (tm *TaskManager) Exit(t *Task, code int) {
	tm.mu.Lock()

	t.markExited(code, tm.clock.Micros())
	t.Mem.Release()

	tm.live--

	tm.L.Trace("task-exit", "pid", t.Pid, "code", code)

	if next := tm.ready.PopFront(); next != nil {
		tm.switchTo(next.(*Task))
	} else {
		tm.current = nil
		if tm.live == 0 {
			close(tm.idle)
		}
	}

	tm.mu.Unlock()

	tm.events.Notify(TaskExited, t.Pid)

	runtime.Goexit()
}

// Wait blocks until the task pid has exited and returns its status.
func (tm *TaskManager) Wait(ctx context.Context, pid int) (ExitStatus, error) {
	c := make(chan waiter.Notification, 1)
	l := tm.events.Subscribe(TaskExited, pid, c)
	defer tm.events.Unregister(l)

	for {
		t, ok := tm.Lookup(pid)
		if !ok {
			return ExitStatus{}, errors.Wrapf(ErrUnknownTask, "pid %d", pid)
		}

		if code, ok := t.ExitCode(); ok {
			return ExitStatus{Pid: pid, Code: code}, nil
		}

		tm.L.Trace("task-waiting-exit", "pid", pid)

		select {
		case <-ctx.Done():
			return ExitStatus{}, ctx.Err()
		case <-c:
		}
	}
}
