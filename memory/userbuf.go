package memory

import "github.com/pkg/errors"

var ErrShortBuffer = errors.New("kernel buffer does not match user range")

// UserBuffer is a kernel view of a user byte range as the list of physically
// contiguous segments backing it. It is only valid while the address space
// that produced it is held; never keep one past the call that made it.
type UserBuffer struct {
	segs [][]byte
	n    int
}

func (b *UserBuffer) Len() int {
	return b.n
}

func (b *UserBuffer) Segments() [][]byte {
	return b.segs
}

// Contiguous reports whether the whole range sits in one physical segment.
func (b *UserBuffer) Contiguous() bool {
	return len(b.segs) == 1 && len(b.segs[0]) == b.n
}

// CopyOut writes src into user memory. src must be exactly Len bytes.
func (b *UserBuffer) CopyOut(src []byte) (int, error) {
	if len(src) != b.n {
		return 0, errors.Wrapf(ErrShortBuffer, "copy out %d bytes into %d byte range", len(src), b.n)
	}

	if b.Contiguous() {
		return copy(b.segs[0], src), nil
	}

	var done int
	for _, seg := range b.segs {
		done += copy(seg, src[done:])
	}

	return done, nil
}

// CopyIn reads user memory into dst. dst must be exactly Len bytes.
func (b *UserBuffer) CopyIn(dst []byte) (int, error) {
	if len(dst) != b.n {
		return 0, errors.Wrapf(ErrShortBuffer, "copy in %d byte range into %d bytes", b.n, len(dst))
	}

	if b.Contiguous() {
		return copy(dst, b.segs[0]), nil
	}

	var done int
	for _, seg := range b.segs {
		done += copy(dst[done:], seg)
	}

	return done, nil
}
