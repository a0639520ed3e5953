package apps

import (
	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	"github.com/evanphx/tutorkernel/memory"
	"github.com/evanphx/tutorkernel/user"
)

func hello(u *kernel.UserContext) {
	msg := []byte("Hello, world from user mode program!")

	ptr := u.StackTop() - 64
	u.Store(ptr, msg)

	got := make([]byte, len(msg))
	u.Load(ptr, got)
	check(u, string(got) == string(msg), 1)

	user.Exit(u, 0)
}

// yielder hands the processor back a few times before exiting.
func yielder(u *kernel.UserContext) {
	for i := 0; i < 5; i++ {
		check(u, user.Yield(u) == 0, 1)
	}

	user.Exit(u, 0)
}

func sleep(u *kernel.UserContext) {
	start := user.GetTimeMicros(u)
	check(u, start >= 0, 1)

	user.Sleep(u, 3000)

	check(u, user.GetTimeMicros(u)-start >= 3000, 2)

	user.Exit(u, 0)
}

// taskinfo0 checks its own syscall counters after a known sequence.
func taskinfo0(u *kernel.UserContext) {
	for i := 0; i < 3; i++ {
		check(u, user.GetTimeMicros(u) >= 0, 1)
	}

	user.Yield(u)

	info, ok := user.GetTaskInfo(u)
	check(u, ok, 2)
	check(u, info.Status == abi.Running, 3)
	check(u, info.SyscallTimes[abi.SysGetTime] == 3, 4)
	check(u, info.SyscallTimes[abi.SysYield] == 1, 5)
	check(u, info.SyscallTimes[abi.SysTaskInfo] == 1, 6)
	check(u, info.SyscallTimes[abi.SysExit] == 0, 7)

	user.Exit(u, 0)
}

// straddle places a TimeVal and a TaskInfo across a page boundary.
func straddle(u *kernel.UserContext) {
	check(u, user.Mmap(u, mmapBase, 2*memory.PageSize, abi.PortRead|abi.PortWrite) == 0, 1)

	ptr := mmapBase + memory.PageSize - 1

	check(u, user.GetTime(u, ptr, 0) == 0, 2)

	tv := user.ReadTimeVal(u, ptr)
	check(u, tv.Usec < 1000000, 3)

	check(u, user.TaskInfo(u, ptr) == 0, 4)

	info := user.ReadTaskInfo(u, ptr)
	check(u, info.SyscallTimes[abi.SysTaskInfo] == 1, 5)
	check(u, info.SyscallTimes[abi.SysGetTime] == 1, 6)

	check(u, user.GetTime(u, mmapBase+2*memory.PageSize-1, 0) == -1, 7)

	user.Exit(u, 0)
}

func init() {
	register("hello", 0, hello)
	register("yield", 0, yielder)
	register("sleep", 0, sleep)
	register("taskinfo0", 0, taskinfo0)
	register("straddle", 0, straddle)
}
