package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/config"
	"github.com/evanphx/tutorkernel/memory"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

// trapInvoker handles just enough syscalls to drive the scheduler.
type trapInvoker struct{}

func (trapInvoker) InvokeSyscall(ctx context.Context, t *Task, id uint64, args [3]uint64) int64 {
	t.CountSyscall(id)

	switch id {
	case abi.SysExit:
		t.Kernel.Sched.Exit(t, int(int32(args[0])))
		panic("unreachable")
	case abi.SysYield:
		t.Kernel.Sched.Yield(t)
		return 0
	default:
		return -1
	}
}

func newKernel(t *testing.T, clock Clock) *Kernel {
	cfg := config.Default()
	cfg.Frames = 256

	k, err := NewKernel(cfg, clock)
	require.NoError(t, err)

	k.Invoker = trapInvoker{}

	return k
}

func run(t *testing.T, k *Kernel) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, k.Run(ctx))
}

func TestScheduler(t *testing.T) {
	n := neko.Modern(t)

	n.It("round-robins tasks that yield", func(t *testing.T) {
		k := newKernel(t, nil)

		var trace []string

		prog := func(name string) Program {
			return func(u *UserContext) {
				for i := 0; i < 3; i++ {
					trace = append(trace, name)
					u.Syscall(abi.SysYield)
				}
				u.Syscall(abi.SysExit, 0)
			}
		}

		_, err := k.Spawn("a", prog("a"))
		require.NoError(t, err)

		_, err = k.Spawn("b", prog("b"))
		require.NoError(t, err)

		run(t, k)

		require.Equal(t, []string{"a", "b", "a", "b", "a", "b"}, trace)
	})

	n.It("reports exit codes to waiters", func(t *testing.T) {
		k := newKernel(t, nil)

		a, err := k.Spawn("a", func(u *UserContext) {
			code := int64(-7)
			u.Syscall(abi.SysExit, uint64(code))
		})
		require.NoError(t, err)

		b, err := k.Spawn("b", func(u *UserContext) {})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done := make(chan ExitStatus, 1)
		go func() {
			st, err := k.Wait(ctx, a.Pid)
			if err == nil {
				done <- st
			}
			close(done)
		}()

		run(t, k)

		st, ok := <-done
		require.True(t, ok)
		require.Equal(t, -7, st.Code)

		st, err = k.Wait(ctx, b.Pid)
		require.NoError(t, err)
		require.Equal(t, 0, st.Code)

		require.Equal(t, abi.Exited, a.Status())
		require.Equal(t, abi.Exited, b.Status())

		_, err = k.Wait(ctx, 99)
		require.Error(t, err)
	})

	n.It("kills a task that faults and frees its memory", func(t *testing.T) {
		k := newKernel(t, nil)
		free := k.Phys.FreeFrames()

		task, err := k.Spawn("faulter", func(u *UserContext) {
			u.Store(0x7000000, []byte{1})
			u.Syscall(abi.SysExit, 0)
		})
		require.NoError(t, err)
		require.Less(t, k.Phys.FreeFrames(), free)

		run(t, k)

		code, ok := task.ExitCode()
		require.True(t, ok)
		require.Equal(t, ExitPageFault, code)
		require.Equal(t, free, k.Phys.FreeFrames())
	})

	n.It("freezes running time at exit", func(t *testing.T) {
		var clock ManualClock
		clock.Set(1000)

		k := newKernel(t, &clock)

		task, err := k.Spawn("timed", func(u *UserContext) {
			clock.Advance(250 * time.Microsecond)
			u.Syscall(abi.SysExit, 0)
		})
		require.NoError(t, err)

		require.Equal(t, uint64(0), task.Info(clock.Micros()).Time)

		run(t, k)

		clock.Advance(time.Second)

		info := task.Info(clock.Micros())
		require.Equal(t, abi.Exited, info.Status)
		require.Equal(t, uint64(250), info.Time)
		require.Equal(t, uint32(1), info.SyscallTimes[abi.SysExit])
	})

	n.It("refuses to resume an exited task", func(t *testing.T) {
		k := newKernel(t, nil)

		task, err := k.NewTask("dead", func(u *UserContext) {})
		require.NoError(t, err)

		task.markExited(0, 0)

		require.Panics(t, func() { k.Tasks().resume(task) })
	})

	n.It("returns immediately with nothing to run", func(t *testing.T) {
		k := newKernel(t, nil)
		run(t, k)
	})

	n.Meow()
}

func TestTask(t *testing.T) {
	n := neko.Modern(t)

	n.It("lays out code, stack and heap", func(t *testing.T) {
		k := newKernel(t, nil)

		task, err := k.NewTask("layout", func(u *UserContext) {})
		require.NoError(t, err)

		regs := task.Mem.Regions()
		require.Len(t, regs, 3)

		require.Equal(t, memory.KindCode, regs[0].Kind)
		require.Equal(t, UserBase, regs[0].Start)

		require.Equal(t, memory.KindStack, regs[1].Kind)
		require.Equal(t, regs[0].End+memory.PageSize, regs[1].Start)
		require.Equal(t, task.StackTop, regs[1].End)

		require.Equal(t, memory.KindHeap, regs[2].Kind)
		require.Equal(t, task.StackTop, task.Mem.HeapBottom())
		require.Equal(t, task.StackTop, task.Mem.Brk())

		require.Equal(t, abi.UnInit, task.Status())
	})

	n.It("counts only ids inside the table", func(t *testing.T) {
		k := newKernel(t, nil)

		task, err := k.NewTask("counter", func(u *UserContext) {})
		require.NoError(t, err)

		require.True(t, task.CountSyscall(abi.SysGetTime))
		require.True(t, task.CountSyscall(abi.SysGetTime))
		require.False(t, task.CountSyscall(abi.MaxSyscallNum))
		require.False(t, task.CountSyscall(1<<40))

		require.Equal(t, uint32(2), task.SyscallCount(abi.SysGetTime))

		task.markExited(0, 0)
		require.False(t, task.CountSyscall(abi.SysGetTime))
		require.Equal(t, uint32(2), task.SyscallCount(abi.SysGetTime))
	})

	n.It("carries the task through a context", func(t *testing.T) {
		task := &Task{Pid: 4}

		_, ok := GetTask(context.Background())
		require.False(t, ok)

		got, ok := GetTask(SetTask(context.Background(), task))
		require.True(t, ok)
		require.Equal(t, task, got)
	})

	n.Meow()
}

func TestManualClock(t *testing.T) {
	var c ManualClock

	c.Set(10)
	c.Set(5)
	require.Equal(t, uint64(10), c.Micros())

	c.Advance(3 * time.Microsecond)
	require.Equal(t, uint64(13), c.Micros())
}
