package user

import (
	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	"github.com/evanphx/tutorkernel/memory"
)

// scratch returns a stack slot of n bytes below the stack top.
func scratch(u *kernel.UserContext, n int) memory.Addr {
	return u.StackTop() - memory.Addr((n+15)&^15)
}

func ReadTimeVal(u *kernel.UserContext, ptr memory.Addr) abi.TimeVal {
	b := make([]byte, abi.TimeValSize)
	u.Load(ptr, b)

	var tv abi.TimeVal
	if err := abi.Unmarshal(b, &tv); err != nil {
		panic(err)
	}

	return tv
}

func ReadTaskInfo(u *kernel.UserContext, ptr memory.Addr) abi.TaskInfo {
	b := make([]byte, abi.TaskInfoSize)
	u.Load(ptr, b)

	var info abi.TaskInfo
	if err := abi.Unmarshal(b, &info); err != nil {
		panic(err)
	}

	return info
}

// GetTimeMicros returns microseconds since boot, or -1.
func GetTimeMicros(u *kernel.UserContext) int64 {
	ptr := scratch(u, abi.TimeValSize)

	if GetTime(u, ptr, 0) != 0 {
		return -1
	}

	return int64(ReadTimeVal(u, ptr).Micros())
}

// GetTaskInfo fetches the caller's accounting snapshot through a stack slot.
func GetTaskInfo(u *kernel.UserContext) (abi.TaskInfo, bool) {
	ptr := scratch(u, abi.TaskInfoSize)

	if TaskInfo(u, ptr) != 0 {
		return abi.TaskInfo{}, false
	}

	return ReadTaskInfo(u, ptr), true
}

// Sleep yields until at least us microseconds have passed.
func Sleep(u *kernel.UserContext, us int64) {
	start := GetTimeMicros(u)

	for GetTimeMicros(u)-start < us {
		Yield(u)
	}
}

func StoreUint64(u *kernel.UserContext, addr memory.Addr, v uint64) {
	var b [8]byte
	abi.ByteOrder.PutUint64(b[:], v)
	u.Store(addr, b[:])
}

func LoadUint64(u *kernel.UserContext, addr memory.Addr) uint64 {
	var b [8]byte
	u.Load(addr, b[:])
	return abi.ByteOrder.Uint64(b[:])
}
