package kernel

import (
	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/memory"
)

// UserBase is where the code region of every task starts.
const UserBase memory.Addr = 0x10000

// NewTask builds a task and its address space: code, a guard page, the user
// stack, and an empty heap whose bottom sits at the stack top. The task is
// not scheduled until it is added to the TaskManager.
func (k *Kernel) NewTask(name string, prog Program) (*Task, error) {
	cfg := k.Config

	as, err := memory.NewAddressSpace(k.Phys, memory.Options{
		TLBEntries: cfg.TLBEntries,
		MaxHeap:    uint64(cfg.MaxHeapPages) * memory.PageSize,
		Logger:     k.L.Named("mm").With("task", name),
	})
	if err != nil {
		return nil, err
	}

	codeSize := uint64(cfg.CodePages) * memory.PageSize
	stackSize := uint64(cfg.StackPages) * memory.PageSize

	_, err = as.MapRegion(UserBase, codeSize, memory.PermRead|memory.PermExec, memory.KindCode)
	if err != nil {
		return nil, err
	}

	stackBottom := UserBase + memory.Addr(codeSize) + memory.PageSize

	_, err = as.MapRegion(stackBottom, stackSize, memory.PermRead|memory.PermWrite, memory.KindStack)
	if err != nil {
		as.Release()
		return nil, err
	}

	stackTop := stackBottom + memory.Addr(stackSize)

	err = as.SetupHeap(stackTop)
	if err != nil {
		as.Release()
		return nil, err
	}

	t := &Task{
		Kernel:   k,
		Name:     name,
		Mem:      as,
		StackTop: stackTop,
		program:  prog,
		wake:     make(chan struct{}, 1),
		status:   abi.UnInit,
	}

	return t, nil
}
