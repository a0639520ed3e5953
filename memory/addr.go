package memory

import "fmt"

const (
	PageShift = 12
	PageSize  = 1 << PageShift // (4 KB)

	// MaxUserAddr is the first address past the user half of the address
	// space.
	MaxUserAddr Addr = 1 << 38
)

// Addr is a virtual address in a task's address space.
type Addr uint64

// VPN is a virtual page number.
type VPN uint64

// PPN is a physical page (frame) number.
type PPN uint64

// PhysAddr is an offset into physical memory.
type PhysAddr uint64

func (a Addr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

func (a Addr) PageOffset() uint64 {
	return uint64(a) & (PageSize - 1)
}

func (a Addr) IsPageAligned() bool {
	return a.PageOffset() == 0
}

func (a Addr) RoundDown() Addr {
	return a &^ (PageSize - 1)
}

// RoundUp returns a rounded up to the next page boundary. ok is false if the
// result overflows.
func (a Addr) RoundUp() (Addr, bool) {
	r := (a + PageSize - 1).RoundDown()
	return r, r >= a
}

func (a Addr) VPN() VPN {
	return VPN(a >> PageShift)
}

// AddLength returns a+n, and false on overflow.
func (a Addr) AddLength(n uint64) (Addr, bool) {
	end := a + Addr(n)
	return end, end >= a
}

func (v VPN) Addr() Addr {
	return Addr(v) << PageShift
}

func (p PPN) PhysAddr() PhysAddr {
	return PhysAddr(p) << PageShift
}

// Perm holds page and region permission bits.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
	PermUser

	PermRWX = PermRead | PermWrite | PermExec
)

func (p Perm) String() string {
	b := []byte("----")
	if p&PermRead != 0 {
		b[0] = 'r'
	}
	if p&PermWrite != 0 {
		b[1] = 'w'
	}
	if p&PermExec != 0 {
		b[2] = 'x'
	}
	if p&PermUser != 0 {
		b[3] = 'u'
	}
	return string(b)
}

// AccessType is the direction of a user memory access.
type AccessType int

const (
	Read AccessType = iota
	Write
)

func (at AccessType) String() string {
	if at == Write {
		return "write"
	}
	return "read"
}

// Allows reports whether a user-mode access of type at is permitted.
func (p Perm) Allows(at AccessType) bool {
	if p&PermUser == 0 {
		return false
	}

	switch at {
	case Write:
		return p&PermWrite != 0
	default:
		return p&PermRead != 0
	}
}
