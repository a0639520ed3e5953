package kernel

import (
	"context"
	"fmt"

	"github.com/evanphx/tutorkernel/memory"
)

// Program is the body of a user task. It talks to the kernel only through
// its UserContext.
type Program func(u *UserContext)

// UserContext is the machine state visible to a running user program: the
// syscall trap and loads/stores through its own address space.
type UserContext struct {
	ctx  context.Context
	task *Task
}

func (u *UserContext) Pid() int {
	return u.task.Pid
}

func (u *UserContext) StackTop() memory.Addr {
	return u.task.StackTop
}

// Syscall traps into the kernel with id and up to three arguments.
func (u *UserContext) Syscall(id uint64, args ...uint64) int64 {
	if len(args) > 3 {
		panic(fmt.Sprintf("syscall %d with %d arguments", id, len(args)))
	}

	var regs [3]uint64
	copy(regs[:], args)

	return u.task.Kernel.Invoker.InvokeSyscall(u.ctx, u.task, id, regs)
}

// Load reads user memory as the program would. A fault kills the task.
func (u *UserContext) Load(addr memory.Addr, b []byte) {
	if err := u.task.Mem.CopyIn(addr, b); err != nil {
		u.fault(addr, memory.Read, err)
	}
}

// Store writes user memory as the program would. A fault kills the task.
func (u *UserContext) Store(addr memory.Addr, b []byte) {
	if err := u.task.Mem.CopyOut(addr, b); err != nil {
		u.fault(addr, memory.Write, err)
	}
}

func (u *UserContext) fault(addr memory.Addr, at memory.AccessType, err error) {
	k := u.task.Kernel
	k.L.Error("page fault in application, kernel killed it", "pid", u.task.Pid, "addr", addr, "access", at, "error", err)

	k.Sched.Exit(u.task, ExitPageFault)
	panic("unreachable after page fault")
}
