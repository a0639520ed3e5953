package memory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func newSpace(t *testing.T, frames int) (*PhysicalMemory, *AddressSpace) {
	pm := NewPhysicalMemory(frames)

	as, err := NewAddressSpace(pm, Options{TLBEntries: 8, MaxHeap: 4 * PageSize})
	require.NoError(t, err)

	return pm, as
}

func TestAddressSpaceMapping(t *testing.T) {
	n := neko.Modern(t)

	n.It("maps and unmaps a region, restoring the frame count", func(t *testing.T) {
		pm, as := newSpace(t, 16)

		before := as.Regions()
		free := pm.FreeFrames()

		reg, err := as.MapRegion(0x10000000, 3*PageSize-10, PermRead|PermWrite, KindMmap)
		require.NoError(t, err)

		require.Equal(t, Addr(0x10000000), reg.Start)
		require.Equal(t, Addr(0x10003000), reg.End)
		require.Equal(t, PermRead|PermWrite|PermUser, reg.Perm)
		require.Equal(t, free-3, pm.FreeFrames())

		require.NoError(t, as.UnmapRange(0x10000000, 3*PageSize))

		require.Equal(t, before, as.Regions())
		require.Equal(t, free, pm.FreeFrames())
	})

	n.It("rejects bad requests without side effects", func(t *testing.T) {
		pm, as := newSpace(t, 16)
		free := pm.FreeFrames()

		_, err := as.MapRegion(0x10000001, PageSize, PermRead, KindMmap)
		require.Equal(t, ErrBadRegionRequest, errors.Cause(err))

		_, err = as.MapRegion(0x10000000, 0, PermRead, KindMmap)
		require.Equal(t, ErrBadRegionRequest, errors.Cause(err))

		_, err = as.MapRegion(0x10000000, PageSize, PermUser, KindMmap)
		require.Equal(t, ErrBadRegionRequest, errors.Cause(err))

		_, err = as.MapRegion(MaxUserAddr-PageSize, 2*PageSize, PermRead, KindMmap)
		require.Equal(t, ErrBadRegionRequest, errors.Cause(err))

		require.Empty(t, as.Regions())
		require.Equal(t, free, pm.FreeFrames())
	})

	n.It("refuses overlapping regions", func(t *testing.T) {
		_, as := newSpace(t, 16)

		_, err := as.MapRegion(0x10000000, PageSize, PermRead, KindMmap)
		require.NoError(t, err)

		_, err = as.MapRegion(0x10002000, PageSize, PermRead, KindMmap)
		require.NoError(t, err)

		_, err = as.MapRegion(0x10001000, 2*PageSize, PermRead, KindMmap)
		require.Equal(t, ErrOverlap, errors.Cause(err))

		regs := as.Regions()
		require.Len(t, regs, 2)
		require.Equal(t, Addr(0x10000000), regs[0].Start)
		require.Equal(t, Addr(0x10002000), regs[1].Start)
	})

	n.It("rolls back a mapping that runs out of frames", func(t *testing.T) {
		pm, as := newSpace(t, 2)

		_, err := as.MapRegion(0x10000000, 3*PageSize, PermRead, KindMmap)
		require.Equal(t, ErrOutOfFrames, errors.Cause(err))

		require.Empty(t, as.Regions())
		require.Equal(t, 2, pm.FreeFrames())
	})

	n.It("unmaps several adjacent regions in one call", func(t *testing.T) {
		_, as := newSpace(t, 16)

		_, err := as.MapRegion(0x10000000, PageSize, PermRead, KindMmap)
		require.NoError(t, err)

		_, err = as.MapRegion(0x10001000, PageSize, PermWrite, KindMmap)
		require.NoError(t, err)

		require.NoError(t, as.UnmapRange(0x10000000, 2*PageSize))
		require.Empty(t, as.Regions())
	})

	n.It("rejects unmaps that do not match mapped regions exactly", func(t *testing.T) {
		_, as := newSpace(t, 16)

		_, err := as.MapRegion(0x10000000, 2*PageSize, PermRead|PermWrite, KindMmap)
		require.NoError(t, err)

		_, err = as.MapRegion(0x20000000, PageSize, PermRead, KindStack)
		require.NoError(t, err)

		before := as.Regions()

		cases := []struct {
			start  Addr
			length uint64
		}{
			{0x10000000, PageSize},
			{0x10001000, PageSize},
			{0x10000000, 3 * PageSize},
			{0x0fff0000, 0x12000},
			{0x30000000, PageSize},
			{0x20000000, PageSize},
		}

		for _, c := range cases {
			err := as.UnmapRange(c.start, c.length)
			require.Equal(t, ErrUnmapMismatch, errors.Cause(err), "unmap %s+%#x", c.start, c.length)
		}

		err = as.UnmapRange(0x10000001, PageSize)
		require.Equal(t, ErrBadRegionRequest, errors.Cause(err))

		require.Equal(t, before, as.Regions())

		data := []byte{1, 2, 3}
		require.NoError(t, as.CopyOut(0x10000ffe, data))

		out := make([]byte, 3)
		require.NoError(t, as.CopyIn(0x10000ffe, out))
		require.Equal(t, data, out)
	})

	n.It("releases every frame", func(t *testing.T) {
		pm, as := newSpace(t, 16)

		_, err := as.MapRegion(0x10000000, 2*PageSize, PermRead, KindMmap)
		require.NoError(t, err)

		require.NoError(t, as.SetupHeap(0x20000000))
		_, err = as.ChangeBrk(PageSize + 1)
		require.NoError(t, err)

		as.Release()

		require.Empty(t, as.Regions())
		require.Equal(t, 16, pm.FreeFrames())
	})

	n.Meow()
}

func TestAddressSpaceBreak(t *testing.T) {
	n := neko.Modern(t)

	const bottom = Addr(0x20000000)

	n.It("returns the old break and maps pages as it grows", func(t *testing.T) {
		pm, as := newSpace(t, 16)
		require.NoError(t, as.SetupHeap(bottom))

		old, err := as.ChangeBrk(0)
		require.NoError(t, err)
		require.Equal(t, bottom, old)

		free := pm.FreeFrames()

		old, err = as.ChangeBrk(100)
		require.NoError(t, err)
		require.Equal(t, bottom, old)
		require.Equal(t, bottom+100, as.Brk())
		require.Equal(t, free-1, pm.FreeFrames())

		require.NoError(t, as.CopyOut(bottom+96, []byte{1, 2, 3, 4}))

		old, err = as.ChangeBrk(PageSize)
		require.NoError(t, err)
		require.Equal(t, bottom+100, old)
		require.Equal(t, free-2, pm.FreeFrames())

		old, err = as.ChangeBrk(-int64(PageSize))
		require.NoError(t, err)
		require.Equal(t, bottom+100+PageSize, old)
		require.Equal(t, free-1, pm.FreeFrames())
	})

	n.It("refuses to move below the heap bottom", func(t *testing.T) {
		_, as := newSpace(t, 16)
		require.NoError(t, as.SetupHeap(bottom))

		_, err := as.ChangeBrk(10)
		require.NoError(t, err)

		_, err = as.ChangeBrk(-11)
		require.Equal(t, ErrBadBreak, errors.Cause(err))
		require.Equal(t, bottom+10, as.Brk())
	})

	n.It("refuses to grow past the heap limit", func(t *testing.T) {
		_, as := newSpace(t, 16)
		require.NoError(t, as.SetupHeap(bottom))

		_, err := as.ChangeBrk(4*PageSize + 1)
		require.Equal(t, ErrBadBreak, errors.Cause(err))
		require.Equal(t, bottom, as.Brk())
	})

	n.It("refuses to grow into a mapped region", func(t *testing.T) {
		_, as := newSpace(t, 16)
		require.NoError(t, as.SetupHeap(bottom))

		_, err := as.MapRegion(bottom+PageSize, PageSize, PermRead, KindMmap)
		require.NoError(t, err)

		_, err = as.ChangeBrk(PageSize)
		require.NoError(t, err)

		_, err = as.ChangeBrk(1)
		require.Equal(t, ErrBadBreak, errors.Cause(err))
		require.Equal(t, bottom+PageSize, as.Brk())
	})

	n.It("keeps mmap off the grown heap", func(t *testing.T) {
		_, as := newSpace(t, 16)
		require.NoError(t, as.SetupHeap(bottom))

		_, err := as.ChangeBrk(1)
		require.NoError(t, err)

		_, err = as.MapRegion(bottom, PageSize, PermRead, KindMmap)
		require.Equal(t, ErrOverlap, errors.Cause(err))

		err = as.UnmapRange(bottom, PageSize)
		require.Equal(t, ErrUnmapMismatch, errors.Cause(err))
	})

	n.It("fails without a heap", func(t *testing.T) {
		_, as := newSpace(t, 16)

		_, err := as.ChangeBrk(0)
		require.Equal(t, ErrBadBreak, errors.Cause(err))
	})

	n.Meow()
}
