package apps

import (
	"bytes"

	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	"github.com/evanphx/tutorkernel/memory"
	"github.com/evanphx/tutorkernel/user"
)

const mmapBase memory.Addr = 0x10000000

// mmap0 maps a read-write page and reads back what it wrote.
func mmap0(u *kernel.UserContext) {
	check(u, user.Mmap(u, mmapBase, memory.PageSize, abi.PortRead|abi.PortWrite) == 0, 1)

	for i := memory.Addr(0); i < memory.PageSize; i += 8 {
		user.StoreUint64(u, mmapBase+i, uint64(i))
	}

	for i := memory.Addr(0); i < memory.PageSize; i += 8 {
		check(u, user.LoadUint64(u, mmapBase+i) == uint64(i), 2)
	}

	user.Exit(u, 0)
}

// mmap1 writes to a read-only mapping and is killed.
func mmap1(u *kernel.UserContext) {
	check(u, user.Mmap(u, mmapBase, memory.PageSize, abi.PortRead) == 0, 1)

	user.StoreUint64(u, mmapBase, 1)

	user.Exit(u, 0)
}

// mmap2 reads from a write-only mapping and is killed.
func mmap2(u *kernel.UserContext) {
	check(u, user.Mmap(u, mmapBase, memory.PageSize, abi.PortWrite) == 0, 1)

	user.LoadUint64(u, mmapBase)

	user.Exit(u, 0)
}

// mmap3 makes requests that must all be refused.
func mmap3(u *kernel.UserContext) {
	check(u, user.Mmap(u, mmapBase, memory.PageSize, abi.PortRead|abi.PortWrite) == 0, 1)

	check(u, user.Mmap(u, mmapBase-memory.PageSize, 2*memory.PageSize, abi.PortRead) == -1, 2)
	check(u, user.Mmap(u, mmapBase+memory.PageSize, memory.PageSize, 0) == -1, 3)
	check(u, user.Mmap(u, mmapBase+memory.PageSize, memory.PageSize, abi.PortRead|8) == -1, 4)
	check(u, user.Mmap(u, mmapBase+memory.PageSize+1, memory.PageSize, abi.PortRead) == -1, 5)
	check(u, user.Mmap(u, mmapBase+memory.PageSize, 0, abi.PortRead) == -1, 6)

	user.Exit(u, 0)
}

// unmap0 removes one of two mappings and checks mismatched unmaps fail.
func unmap0(u *kernel.UserContext) {
	check(u, user.Mmap(u, mmapBase, 2*memory.PageSize, abi.PortRead|abi.PortWrite) == 0, 1)
	check(u, user.Mmap(u, mmapBase+4*memory.PageSize, memory.PageSize, abi.PortRead|abi.PortWrite) == 0, 2)

	check(u, user.Munmap(u, mmapBase, memory.PageSize) == -1, 3)
	check(u, user.Munmap(u, mmapBase+memory.PageSize, 4*memory.PageSize) == -1, 4)
	check(u, user.Munmap(u, mmapBase+4*memory.PageSize, memory.PageSize) == 0, 5)

	user.StoreUint64(u, mmapBase+memory.PageSize, 7)
	check(u, user.LoadUint64(u, mmapBase+memory.PageSize) == 7, 6)

	check(u, user.Munmap(u, mmapBase, 2*memory.PageSize) == 0, 7)

	user.Exit(u, 0)
}

// unmap1 touches memory after unmapping it and is killed.
func unmap1(u *kernel.UserContext) {
	check(u, user.Mmap(u, mmapBase, memory.PageSize, abi.PortRead|abi.PortWrite) == 0, 1)
	check(u, user.Munmap(u, mmapBase, memory.PageSize) == 0, 2)

	user.LoadUint64(u, mmapBase)

	user.Exit(u, 0)
}

// sbrk0 grows, uses and shrinks the heap.
func sbrk0(u *kernel.UserContext) {
	base := user.Sbrk(u, 0)
	check(u, base > 0, 1)
	check(u, user.Sbrk(u, 0) == base, 2)

	check(u, user.Sbrk(u, 2*memory.PageSize) == base, 3)

	heap := memory.Addr(base)
	mem := bytes.Repeat([]byte{0xa5}, 2*memory.PageSize)
	u.Store(heap, mem)

	got := make([]byte, len(mem))
	u.Load(heap, got)
	check(u, bytes.Equal(got, mem), 4)

	check(u, user.Sbrk(u, -memory.PageSize) == base+2*memory.PageSize, 5)
	check(u, user.Sbrk(u, -2*memory.PageSize) == -1, 6)
	check(u, user.Sbrk(u, 0) == base+memory.PageSize, 7)

	user.Exit(u, 0)
}

func init() {
	register("mmap0", 0, mmap0)
	register("mmap1", kernel.ExitPageFault, mmap1)
	register("mmap2", kernel.ExitPageFault, mmap2)
	register("mmap3", 0, mmap3)
	register("unmap0", 0, unmap0)
	register("unmap1", kernel.ExitPageFault, unmap1)
	register("sbrk0", 0, sbrk0)
}
