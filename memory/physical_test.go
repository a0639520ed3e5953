package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestPhysicalMemory(t *testing.T) {
	n := neko.Modern(t)

	n.It("hands out every frame once", func(t *testing.T) {
		pm := NewPhysicalMemory(2)

		a, err := pm.AllocFrame()
		require.NoError(t, err)

		b, err := pm.AllocFrame()
		require.NoError(t, err)
		require.NotEqual(t, a, b)

		_, err = pm.AllocFrame()
		require.Equal(t, ErrOutOfFrames, err)
		require.Equal(t, 0, pm.FreeFrames())
	})

	n.It("recycles freed frames zeroed", func(t *testing.T) {
		pm := NewPhysicalMemory(1)

		a, err := pm.AllocFrame()
		require.NoError(t, err)

		pm.Frame(a)[10] = 0xff
		pm.FreeFrame(a)
		require.Equal(t, 1, pm.FreeFrames())

		b, err := pm.AllocFrame()
		require.NoError(t, err)
		require.Equal(t, a, b)
		require.Equal(t, byte(0), pm.Frame(b)[10])
	})

	n.It("panics on a double free", func(t *testing.T) {
		pm := NewPhysicalMemory(1)

		a, err := pm.AllocFrame()
		require.NoError(t, err)

		pm.FreeFrame(a)
		require.Panics(t, func() { pm.FreeFrame(a) })
	})

	n.Meow()
}

func TestAddr(t *testing.T) {
	n := neko.Modern(t)

	n.It("rounds to page boundaries", func(t *testing.T) {
		require.Equal(t, Addr(0x1000), Addr(0x1fff).RoundDown())

		up, ok := Addr(0x1001).RoundUp()
		require.True(t, ok)
		require.Equal(t, Addr(0x2000), up)

		up, ok = Addr(0x2000).RoundUp()
		require.True(t, ok)
		require.Equal(t, Addr(0x2000), up)

		_, ok = Addr(^uint64(0)).RoundUp()
		require.False(t, ok)
	})

	n.It("checks permissions for user access", func(t *testing.T) {
		require.True(t, (PermRead | PermUser).Allows(Read))
		require.False(t, (PermRead | PermUser).Allows(Write))
		require.False(t, (PermRead | PermWrite).Allows(Write))
		require.True(t, (PermWrite | PermUser).Allows(Write))
		require.Equal(t, "rw-u", (PermRead | PermWrite | PermUser).String())
	})

	n.Meow()
}
