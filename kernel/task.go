package kernel

import (
	"context"
	"sync"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/memory"
	"github.com/evanphx/tutorkernel/pkg/ilist"
)

type prockey struct{}

func GetTask(ctx context.Context) (*Task, bool) {
	if v := ctx.Value(prockey{}); v != nil {
		return v.(*Task), true
	}

	return nil, false
}

func SetTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, prockey{}, t)
}

type ExitStatus struct {
	Pid  int
	Code int
}

// ExitPageFault is the exit code of a task killed by a memory fault.
const ExitPageFault = -2

type Task struct {
	// Links the task into the ready queue. Protected by the TaskManager.
	ilist.Entry

	Kernel   *Kernel
	Pid      int
	Name     string
	Mem      *memory.AddressSpace
	StackTop memory.Addr

	program Program
	wake    chan struct{}

	mu           sync.Mutex
	status       abi.TaskStatus
	exitCode     int
	syscallTimes [abi.MaxSyscallNum]uint32
	started      bool
	firstRun     uint64
	runTime      uint64
}

func (t *Task) Status() abi.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.status
}

// ExitCode returns the code passed to exit, once the task has exited.
func (t *Task) ExitCode() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.exitCode, t.status == abi.Exited
}

// CountSyscall records one invocation of id. Ids outside the table and
// calls made after exit are not counted.
func (t *Task) CountSyscall(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id >= abi.MaxSyscallNum || t.status == abi.Exited {
		return false
	}

	t.syscallTimes[id]++

	return true
}

func (t *Task) SyscallCount(id uint64) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id >= abi.MaxSyscallNum {
		return 0
	}

	return t.syscallTimes[id]
}

// Info snapshots the task's accounting as of now (microseconds since boot).
func (t *Task) Info(now uint64) abi.TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := abi.TaskInfo{
		Status:       t.status,
		SyscallTimes: t.syscallTimes,
	}

	switch {
	case t.status == abi.Exited:
		info.Time = t.runTime
	case t.started && now > t.firstRun:
		info.Time = now - t.firstRun
	}

	return info
}

func (t *Task) setStatus(s abi.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = s
}

func (t *Task) markRunning(now uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		t.started = true
		t.firstRun = now
	}

	t.status = abi.Running
}

func (t *Task) markExited(code int, now uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started && now > t.firstRun {
		t.runTime = now - t.firstRun
	}

	t.exitCode = code
	t.status = abi.Exited
}
