package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/davecgh/go-spew/spew"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

var (
	ErrBadRegionRequest = errors.New("bad region request")
	ErrOverlap          = errors.New("region overlaps an existing mapping")
	ErrUnmapMismatch    = errors.New("unmap range does not match mapped regions")
	ErrBadBreak         = errors.New("program break out of bounds")
)

type RegionKind int

const (
	KindCode RegionKind = iota
	KindStack
	KindHeap
	KindMmap
)

func (k RegionKind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindStack:
		return "stack"
	case KindHeap:
		return "heap"
	case KindMmap:
		return "mmap"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Region is a page aligned span [Start, End) with uniform permissions.
type Region struct {
	Start, End Addr
	Perm       Perm
	Kind       RegionKind
}

func (reg *Region) Contains(x Addr) bool {
	return x >= reg.Start && x < reg.End
}

func (reg *Region) Overlaps(start, end Addr) bool {
	return start < reg.End && reg.Start < end
}

func (reg *Region) Size() uint64 {
	return uint64(reg.End - reg.Start)
}

type Options struct {
	// TLBEntries sizes the translation cache. Zero disables it.
	TLBEntries int

	// MaxHeap bounds how far the program break may move above the heap
	// bottom. Zero means no limit beyond the user address space.
	MaxHeap uint64

	Logger hclog.Logger
}

// AddressSpace is the set of regions mapped for one task plus its program
// break. Regions never overlap and are kept sorted by start address.
type AddressSpace struct {
	mu sync.Mutex

	L hclog.Logger

	pm *PhysicalMemory
	pt *PageTable

	regions []*Region

	heap       *Region
	heapBottom Addr
	brk        Addr
	maxHeap    uint64
}

func NewAddressSpace(pm *PhysicalMemory, opts Options) (*AddressSpace, error) {
	pt, err := NewPageTable(pm, opts.TLBEntries)
	if err != nil {
		return nil, err
	}

	l := opts.Logger
	if l == nil {
		l = hclog.NewNullLogger()
	}

	return &AddressSpace{
		L:       l,
		pm:      pm,
		pt:      pt,
		maxHeap: opts.MaxHeap,
	}, nil
}

// PageTable exposes the translation tables, e.g. for an independent reader of
// user memory.
func (as *AddressSpace) PageTable() *PageTable {
	return as.pt
}

func (as *AddressSpace) findOverlap(start, end Addr) (*Region, bool) {
	for _, reg := range as.regions {
		if reg.Overlaps(start, end) {
			return reg, true
		}
	}

	return nil, false
}

// FindRegion returns the region containing addr.
func (as *AddressSpace) FindRegion(addr Addr) (Region, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()

	for _, reg := range as.regions {
		if reg.Contains(addr) {
			return *reg, true
		}
	}

	return Region{}, false
}

// Regions returns a snapshot of the mapped regions in address order.
func (as *AddressSpace) Regions() []Region {
	as.mu.Lock()
	defer as.mu.Unlock()

	out := make([]Region, 0, len(as.regions))
	for _, reg := range as.regions {
		out = append(out, *reg)
	}

	return out
}

func (as *AddressSpace) insert(reg *Region) {
	i := sort.Search(len(as.regions), func(i int) bool {
		return as.regions[i].Start >= reg.Start
	})

	as.regions = append(as.regions, nil)
	copy(as.regions[i+1:], as.regions[i:])
	as.regions[i] = reg
}

func (as *AddressSpace) remove(reg *Region) {
	for i, r := range as.regions {
		if r == reg {
			as.regions = append(as.regions[:i], as.regions[i+1:]...)
			return
		}
	}
}

// populate backs every page of [start, end) with a fresh frame. On failure
// the pages it mapped are released again.
func (as *AddressSpace) populate(start, end Addr, perm Perm) error {
	for va := start; va < end; va += PageSize {
		ppn, err := as.pm.AllocFrame()
		if err != nil {
			as.depopulate(start, va)
			return errors.Wrapf(err, "populating %s-%s", start, end)
		}

		as.pt.Map(va.VPN(), ppn, perm)
	}

	return nil
}

func (as *AddressSpace) depopulate(start, end Addr) {
	for va := start; va < end; va += PageSize {
		if pte, ok := as.pt.Unmap(va.VPN()); ok {
			as.pm.FreeFrame(pte.PPN)
		}
	}
}

func checkRange(start Addr, length uint64) (Addr, error) {
	if !start.IsPageAligned() {
		return 0, errors.Wrapf(ErrBadRegionRequest, "start %s not page aligned", start)
	}

	if length == 0 {
		return 0, errors.Wrapf(ErrBadRegionRequest, "zero length at %s", start)
	}

	end, ok := start.AddLength(length)
	if ok {
		end, ok = end.RoundUp()
	}

	if !ok || end > MaxUserAddr {
		return 0, errors.Wrapf(ErrBadRegionRequest, "range %s+%#x outside user space", start, length)
	}

	return end, nil
}

// MapRegion maps [start, start+length) rounded up to whole pages with the
// given permissions, which must include at least one of read, write and
// execute. The region is user accessible and backed eagerly.
func (as *AddressSpace) MapRegion(start Addr, length uint64, perm Perm, kind RegionKind) (Region, error) {
	if perm&PermRWX == 0 {
		return Region{}, errors.Wrapf(ErrBadRegionRequest, "no permission bits for %s", start)
	}

	end, err := checkRange(start, length)
	if err != nil {
		return Region{}, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	if reg, ok := as.findOverlap(start, end); ok {
		return Region{}, errors.Wrapf(ErrOverlap, "%s-%s overlaps %s region %s-%s", start, end, reg.Kind, reg.Start, reg.End)
	}

	perm |= PermUser

	err = as.populate(start, end, perm)
	if err != nil {
		return Region{}, err
	}

	reg := &Region{
		Start: start,
		End:   end,
		Perm:  perm,
		Kind:  kind,
	}

	as.insert(reg)

	as.L.Trace("new region", "kind", kind, "start", start, "end", end, "perm", perm)

	return *reg, nil
}

// UnmapRange removes [start, start+length) rounded up to whole pages. The
// range must be covered exactly by one or more adjacent mmap regions;
// anything else leaves the address space untouched.
func (as *AddressSpace) UnmapRange(start Addr, length uint64) error {
	end, err := checkRange(start, length)
	if err != nil {
		return err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	var (
		victims []*Region
		next    = start
	)

	for _, reg := range as.regions {
		if !reg.Overlaps(start, end) {
			continue
		}

		if reg.Kind != KindMmap {
			return errors.Wrapf(ErrUnmapMismatch, "%s-%s touches %s region", start, end, reg.Kind)
		}

		if reg.Start != next || reg.End > end {
			return errors.Wrapf(ErrUnmapMismatch, "%s-%s splits region %s-%s", start, end, reg.Start, reg.End)
		}

		victims = append(victims, reg)
		next = reg.End
	}

	if next != end {
		return errors.Wrapf(ErrUnmapMismatch, "%s-%s not fully mapped", start, end)
	}

	for _, reg := range victims {
		as.depopulate(reg.Start, reg.End)
		as.remove(reg)
	}

	as.L.Trace("unmapped range", "start", start, "end", end, "regions", len(victims))

	return nil
}

// SetupHeap places an empty heap region at bottom, which must be page aligned
// and unmapped.
func (as *AddressSpace) SetupHeap(bottom Addr) error {
	if !bottom.IsPageAligned() || bottom >= MaxUserAddr {
		return errors.Wrapf(ErrBadRegionRequest, "heap bottom %s", bottom)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	if as.heap != nil {
		return errors.Wrapf(ErrBadRegionRequest, "heap already at %s", as.heapBottom)
	}

	if reg, ok := as.findOverlap(bottom, bottom+1); ok {
		return errors.Wrapf(ErrOverlap, "heap bottom %s inside %s region", bottom, reg.Kind)
	}

	as.heap = &Region{
		Start: bottom,
		End:   bottom,
		Perm:  PermRead | PermWrite | PermUser,
		Kind:  KindHeap,
	}

	as.insert(as.heap)

	as.heapBottom = bottom
	as.brk = bottom

	return nil
}

func (as *AddressSpace) Brk() Addr {
	as.mu.Lock()
	defer as.mu.Unlock()

	return as.brk
}

func (as *AddressSpace) HeapBottom() Addr {
	as.mu.Lock()
	defer as.mu.Unlock()

	return as.heapBottom
}

// ChangeBrk moves the program break by delta bytes and returns the previous
// break. Pages are added or released as the rounded-up break crosses page
// boundaries.
func (as *AddressSpace) ChangeBrk(delta int64) (Addr, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.heap == nil {
		return 0, errors.Wrap(ErrBadBreak, "no heap")
	}

	old := as.brk

	var newBrk Addr
	if delta < 0 {
		dec := Addr(-delta)
		if dec > old-as.heapBottom {
			return 0, errors.Wrapf(ErrBadBreak, "shrink by %#x below heap bottom %s", dec, as.heapBottom)
		}
		newBrk = old - dec
	} else {
		var ok bool
		newBrk, ok = old.AddLength(uint64(delta))
		if !ok || newBrk > MaxUserAddr {
			return 0, errors.Wrapf(ErrBadBreak, "grow by %#x past user space", delta)
		}
	}

	if as.maxHeap > 0 && uint64(newBrk-as.heapBottom) > as.maxHeap {
		return 0, errors.Wrapf(ErrBadBreak, "heap of %#x bytes exceeds limit %#x", uint64(newBrk-as.heapBottom), as.maxHeap)
	}

	newEnd, ok := newBrk.RoundUp()
	if !ok || newEnd > MaxUserAddr {
		return 0, errors.Wrapf(ErrBadBreak, "break %s past user space", newBrk)
	}

	switch {
	case newEnd > as.heap.End:
		for _, reg := range as.regions {
			if reg != as.heap && reg.Overlaps(as.heap.End, newEnd) {
				return 0, errors.Wrapf(ErrBadBreak, "heap growth to %s runs into %s region %s", newEnd, reg.Kind, reg.Start)
			}
		}

		err := as.populate(as.heap.End, newEnd, as.heap.Perm)
		if err != nil {
			return 0, errors.Wrap(ErrBadBreak, err.Error())
		}

		as.heap.End = newEnd
	case newEnd < as.heap.End:
		as.depopulate(newEnd, as.heap.End)
		as.heap.End = newEnd
	}

	as.brk = newBrk

	as.L.Trace("program break moved", "old", old, "new", newBrk)

	return old, nil
}

// WithUserBuffer translates [addr, addr+n) for access at and calls fn with the
// resulting view while the address space is held, so the backing cannot
// change underneath it. If translation fails fn is not called.
func (as *AddressSpace) WithUserBuffer(addr Addr, n uint64, at AccessType, fn func(*UserBuffer) error) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	buf, err := as.pt.Translate(addr, n, at)
	if err != nil {
		return err
	}

	return fn(buf)
}

// CopyOut writes src to user memory at addr, all or nothing.
func (as *AddressSpace) CopyOut(addr Addr, src []byte) error {
	return as.WithUserBuffer(addr, uint64(len(src)), Write, func(buf *UserBuffer) error {
		_, err := buf.CopyOut(src)
		return err
	})
}

// CopyIn reads len(dst) bytes of user memory at addr.
func (as *AddressSpace) CopyIn(addr Addr, dst []byte) error {
	return as.WithUserBuffer(addr, uint64(len(dst)), Read, func(buf *UserBuffer) error {
		_, err := buf.CopyIn(dst)
		return err
	})
}

// Release unmaps every region and returns all frames.
func (as *AddressSpace) Release() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.L.IsTrace() {
		as.L.Trace("releasing address space", "regions", spew.Sdump(as.regions))
	}

	for _, reg := range as.regions {
		as.depopulate(reg.Start, reg.End)
	}

	as.regions = nil
	as.heap = nil
	as.pt.Flush()
}
