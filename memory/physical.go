package memory

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

var ErrOutOfFrames = errors.New("out of physical frames")

// PhysicalMemory is the frame store backing every address space. Frames are
// handed out by a stack allocator: fresh frames come from a bump pointer,
// freed frames are recycled first.
type PhysicalMemory struct {
	mu sync.Mutex

	mem      []byte
	current  PPN
	end      PPN
	recycled []PPN
	inUse    []bool
}

func NewPhysicalMemory(frames int) *PhysicalMemory {
	return &PhysicalMemory{
		mem:   make([]byte, frames*PageSize),
		end:   PPN(frames),
		inUse: make([]bool, frames),
	}
}

func (pm *PhysicalMemory) TotalFrames() int {
	return int(pm.end)
}

func (pm *PhysicalMemory) FreeFrames() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	return int(pm.end-pm.current) + len(pm.recycled)
}

// AllocFrame returns a zeroed frame.
func (pm *PhysicalMemory) AllocFrame() (PPN, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var ppn PPN

	if n := len(pm.recycled); n > 0 {
		ppn = pm.recycled[n-1]
		pm.recycled = pm.recycled[:n-1]
	} else if pm.current < pm.end {
		ppn = pm.current
		pm.current++
	} else {
		return 0, ErrOutOfFrames
	}

	pm.inUse[ppn] = true

	frame := pm.frame(ppn)
	for i := range frame {
		frame[i] = 0
	}

	return ppn, nil
}

func (pm *PhysicalMemory) FreeFrame(ppn PPN) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if ppn >= pm.end || !pm.inUse[ppn] {
		panic(fmt.Sprintf("frame ppn=%#x has not been allocated", uint64(ppn)))
	}

	pm.inUse[ppn] = false
	pm.recycled = append(pm.recycled, ppn)
}

func (pm *PhysicalMemory) frame(ppn PPN) []byte {
	pa := ppn.PhysAddr()
	return pm.mem[pa : pa+PageSize : pa+PageSize]
}

// Frame returns the bytes of a single frame.
func (pm *PhysicalMemory) Frame(ppn PPN) []byte {
	return pm.frame(ppn)
}

// Slice returns n physically contiguous bytes starting at pa.
func (pm *PhysicalMemory) Slice(pa PhysAddr, n uint64) []byte {
	end := uint64(pa) + n
	return pm.mem[pa:end:end]
}
