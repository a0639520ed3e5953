package abi

// Syscall numbers shared with the user-mode runtime. They index the per-task
// invocation table and must stay stable.
const (
	SysExit     = 93
	SysYield    = 124
	SysGetTime  = 169
	SysSbrk     = 214
	SysMunmap   = 215
	SysMmap     = 222
	SysTaskInfo = 410
)

// MaxSyscallNum bounds the syscall id space tracked per task.
const MaxSyscallNum = 500

var SyscallNames = map[uint64]string{
	SysExit:     "exit",
	SysYield:    "yield",
	SysGetTime:  "get_time",
	SysSbrk:     "sbrk",
	SysMunmap:   "munmap",
	SysMmap:     "mmap",
	SysTaskInfo: "task_info",
}

// Permission bits of the mmap port argument.
const (
	PortRead  = 1 << 0
	PortWrite = 1 << 1
	PortExec  = 1 << 2

	PortMask = PortRead | PortWrite | PortExec
)
