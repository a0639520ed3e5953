package memory

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

var ErrInvalidMemoryAccess = errors.New("invalid memory access via translation")

// PTE is a leaf page table entry.
type PTE struct {
	PPN  PPN
	Perm Perm
}

// PageTable maps virtual pages of one address space to physical frames.
// Lookups go through a small ARC cache standing in for the TLB, which must be
// invalidated whenever a mapping is removed.
type PageTable struct {
	pm      *PhysicalMemory
	entries map[VPN]PTE

	tlb *lru.ARCCache
}

func NewPageTable(pm *PhysicalMemory, tlbEntries int) (*PageTable, error) {
	pt := &PageTable{
		pm:      pm,
		entries: make(map[VPN]PTE),
	}

	if tlbEntries > 0 {
		tlb, err := lru.NewARC(tlbEntries)
		if err != nil {
			return nil, err
		}

		pt.tlb = tlb
	}

	return pt, nil
}

// Map installs vpn -> ppn. Mapping a page twice is a kernel bug.
func (pt *PageTable) Map(vpn VPN, ppn PPN, perm Perm) {
	if _, ok := pt.entries[vpn]; ok {
		panic(fmt.Sprintf("vpn %#x is mapped before mapping", uint64(vpn)))
	}

	pt.entries[vpn] = PTE{PPN: ppn, Perm: perm}
}

func (pt *PageTable) Unmap(vpn VPN) (PTE, bool) {
	pte, ok := pt.entries[vpn]
	if !ok {
		return PTE{}, false
	}

	delete(pt.entries, vpn)

	if pt.tlb != nil {
		pt.tlb.Remove(vpn)
	}

	return pte, true
}

func (pt *PageTable) Lookup(vpn VPN) (PTE, bool) {
	if pt.tlb != nil {
		if v, ok := pt.tlb.Get(vpn); ok {
			return v.(PTE), true
		}
	}

	pte, ok := pt.entries[vpn]
	if !ok {
		return PTE{}, false
	}

	if pt.tlb != nil {
		pt.tlb.Add(vpn, pte)
	}

	return pte, true
}

func (pt *PageTable) Len() int {
	return len(pt.entries)
}

// Flush drops every cached translation.
func (pt *PageTable) Flush() {
	if pt.tlb != nil {
		pt.tlb.Purge()
	}
}

// Translate resolves [addr, addr+n) into the physical segments backing it,
// in ascending virtual order. Adjacent pages backed by consecutive frames
// are merged into one segment. Every page must be mapped with user access
// permitting at, otherwise the whole translation fails.
func (pt *PageTable) Translate(addr Addr, n uint64, at AccessType) (*UserBuffer, error) {
	end, ok := addr.AddLength(n)
	if !ok || end > MaxUserAddr {
		return nil, errors.Wrapf(ErrInvalidMemoryAccess, "range addr=%s, size=%#x outside user space", addr, n)
	}

	buf := &UserBuffer{n: int(n)}

	var (
		lastEnd PhysAddr
		haveSeg bool
	)

	for cur := addr; cur < end; {
		vpn := cur.VPN()

		pte, ok := pt.Lookup(vpn)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidMemoryAccess, "address %s not mapped", cur)
		}

		if !pte.Perm.Allows(at) {
			return nil, errors.Wrapf(ErrInvalidMemoryAccess, "%s access denied at %s (perm %s)", at, cur, pte.Perm)
		}

		pageEnd := (vpn + 1).Addr()
		if pageEnd > end {
			pageEnd = end
		}

		size := uint64(pageEnd - cur)
		pa := pte.PPN.PhysAddr() + PhysAddr(cur.PageOffset())

		if haveSeg && pa == lastEnd {
			last := len(buf.segs) - 1
			start := lastEnd - PhysAddr(len(buf.segs[last]))
			buf.segs[last] = pt.pm.Slice(start, uint64(len(buf.segs[last]))+size)
		} else {
			buf.segs = append(buf.segs, pt.pm.Slice(pa, size))
		}

		lastEnd = pa + PhysAddr(size)
		haveSeg = true
		cur = pageEnd
	}

	return buf, nil
}
