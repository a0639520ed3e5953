package syscalls

import (
	"context"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

type SysArgs struct {
	Index uint64
	Args  SyscallRequest
}

// SyscallRequest holds the raw argument registers.
type SyscallRequest struct {
	R0, R1, R2 uint64
}

// Handler runs one syscall for the current task and returns the value placed
// in the return register.
type Handler func(context.Context, hclog.Logger, *kernel.Task, SysArgs) int64

var Syscalls [abi.MaxSyscallNum]Handler

// Fail is the single failure value user mode ever sees.
const Fail int64 = -1
