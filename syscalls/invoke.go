package syscalls

import (
	"context"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	"github.com/evanphx/tutorkernel/log"
	hclog "github.com/hashicorp/go-hclog"
)

// Invoker is the trap-side dispatcher. It rejects ids with no handler and
// records every dispatched call in the task's counter table before running
// it, so a task_info query sees itself.
type Invoker struct {
	L hclog.Logger
}

func (i *Invoker) logger() hclog.Logger {
	if i.L != nil {
		return i.L
	}

	return log.L
}

func (i *Invoker) InvokeSyscall(ctx context.Context, t *kernel.Task, id uint64, args [3]uint64) int64 {
	l := i.logger()

	if id >= abi.MaxSyscallNum || Syscalls[id] == nil {
		l.Error("unsupported syscall", "pid", t.Pid, "index", id)
		return Fail
	}

	t.CountSyscall(id)

	l.Trace("syscall", "pid", t.Pid, "index", id, "name", abi.SyscallNames[id], "a0", args[0], "a1", args[1], "a2", args[2])

	return Syscalls[id](ctx, l, t, SysArgs{
		Index: id,
		Args:  SyscallRequest{R0: args[0], R1: args[1], R2: args[2]},
	})
}
