package syscalls

import (
	"context"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

// GetTime writes the time since boot as a TimeVal at ptr. tz is reserved and
// ignored.
func GetTime(t *kernel.Task, ptr, tz uint64) error {
	tv := abi.TimeValFromMicros(t.Kernel.Clock.Micros())

	return copyOut(t, ptr, tv)
}

// TaskInfo writes a snapshot of the task's accounting at ptr.
func TaskInfo(t *kernel.Task, ptr uint64) error {
	info := t.Info(t.Kernel.Clock.Micros())

	return copyOut(t, ptr, &info)
}

func sysGetTime(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		ptr = args.Args.R0
		tz  = args.Args.R1
	)

	return result(l, "get_time", GetTime(t, ptr, tz))
}

func sysTaskInfo(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	return result(l, "task_info", TaskInfo(t, args.Args.R0))
}

func init() {
	Syscalls[abi.SysGetTime] = sysGetTime
	Syscalls[abi.SysTaskInfo] = sysTaskInfo
}
