package syscalls

import (
	"context"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	"github.com/evanphx/tutorkernel/memory"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

func portPerm(port uint64) (memory.Perm, error) {
	if port&^abi.PortMask != 0 || port&abi.PortMask == 0 {
		return 0, errors.Wrapf(ErrInvalidPort, "port %#x", port)
	}

	var perm memory.Perm

	if port&abi.PortRead != 0 {
		perm |= memory.PermRead
	}

	if port&abi.PortWrite != 0 {
		perm |= memory.PermWrite
	}

	if port&abi.PortExec != 0 {
		perm |= memory.PermExec
	}

	return perm, nil
}

// Mmap maps [start, start+length), rounded up to whole pages, with the
// permissions encoded in port.
func Mmap(t *kernel.Task, start, length, port uint64) error {
	addr := memory.Addr(start)

	if !addr.IsPageAligned() {
		return errors.Wrapf(memory.ErrBadRegionRequest, "start %s not page aligned", addr)
	}

	if length == 0 {
		return errors.Wrap(memory.ErrBadRegionRequest, "zero length")
	}

	perm, err := portPerm(port)
	if err != nil {
		return err
	}

	_, err = t.Mem.MapRegion(addr, length, perm, memory.KindMmap)
	return err
}

// Munmap removes the mmap regions exactly covering [start, start+length),
// rounded up to whole pages.
func Munmap(t *kernel.Task, start, length uint64) error {
	return t.Mem.UnmapRange(memory.Addr(start), length)
}

// Sbrk moves the program break by delta bytes and returns the old break.
func Sbrk(t *kernel.Task, delta int64) (uint64, error) {
	old, err := t.Mem.ChangeBrk(delta)
	if err != nil {
		return 0, err
	}

	return uint64(old), nil
}

func sysMmap(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		start  = args.Args.R0
		length = args.Args.R1
		port   = args.Args.R2
	)

	return result(l, "mmap", Mmap(t, start, length, port))
}

func sysMunmap(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		start  = args.Args.R0
		length = args.Args.R1
	)

	return result(l, "munmap", Munmap(t, start, length))
}

func sysSbrk(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	delta := int64(int32(args.Args.R0))

	old, err := Sbrk(t, delta)
	if err != nil {
		return result(l, "sbrk", err)
	}

	return int64(old)
}

func init() {
	Syscalls[abi.SysMmap] = sysMmap
	Syscalls[abi.SysMunmap] = sysMunmap
	Syscalls[abi.SysSbrk] = sysSbrk
}
