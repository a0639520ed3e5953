package syscalls

import (
	"github.com/evanphx/tutorkernel/abi"
	"github.com/evanphx/tutorkernel/kernel"
	"github.com/evanphx/tutorkernel/memory"
)

// copyOut encodes v in its user layout and writes it to the current task's
// memory at addr. The destination is translated in full before any byte is
// written, so the user sees the whole value or none of it, wherever the
// page boundaries fall.
func copyOut(t *kernel.Task, addr uint64, v interface{}) error {
	data, err := abi.Marshal(v)
	if err != nil {
		return err
	}

	return t.Mem.WithUserBuffer(memory.Addr(addr), uint64(len(data)), memory.Write, func(buf *memory.UserBuffer) error {
		_, err := buf.CopyOut(data)
		return err
	})
}
