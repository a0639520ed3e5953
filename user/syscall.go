// Package user is the user-mode runtime: typed wrappers that trap into the
// kernel and decode results from the caller's own memory.
package user

import (
	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	"github.com/evanphx/tutorkernel/memory"
)

func Exit(u *kernel.UserContext, code int) {
	u.Syscall(abi.SysExit, uint64(int64(code)))
	panic("unreachable after exit")
}

func Yield(u *kernel.UserContext) int64 {
	return u.Syscall(abi.SysYield)
}

func GetTime(u *kernel.UserContext, ptr memory.Addr, tz uint64) int64 {
	return u.Syscall(abi.SysGetTime, uint64(ptr), tz)
}

func TaskInfo(u *kernel.UserContext, ptr memory.Addr) int64 {
	return u.Syscall(abi.SysTaskInfo, uint64(ptr))
}

func Mmap(u *kernel.UserContext, start memory.Addr, length, port uint64) int64 {
	return u.Syscall(abi.SysMmap, uint64(start), length, port)
}

func Munmap(u *kernel.UserContext, start memory.Addr, length uint64) int64 {
	return u.Syscall(abi.SysMunmap, uint64(start), length)
}

func Sbrk(u *kernel.UserContext, delta int32) int64 {
	return u.Syscall(abi.SysSbrk, uint64(int64(delta)))
}
