package syscalls

import (
	"context"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

func sysExit(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	code := int(int32(args.Args.R0))

	l.Info("task exited", "pid", t.Pid, "code", code)

	t.Kernel.Sched.Exit(t, code)
	panic("unreachable in sys_exit")
}

func sysYield(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	t.Kernel.Sched.Yield(t)
	return 0
}

func init() {
	Syscalls[abi.SysExit] = sysExit
	Syscalls[abi.SysYield] = sysYield
}
