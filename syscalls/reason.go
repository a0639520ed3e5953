package syscalls

import (
	"github.com/evanphx/tutorkernel/memory"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Reason classifies why a syscall failed. User mode only ever sees -1; the
// reason is for the kernel's logs and tests.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTranslation
	ReasonValidation
	ReasonMismatch
	ReasonBound
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTranslation:
		return "translation"
	case ReasonValidation:
		return "validation"
	case ReasonMismatch:
		return "mismatch"
	case ReasonBound:
		return "bound"
	default:
		return "unknown"
	}
}

var ErrInvalidPort = errors.New("invalid mmap port")

// ReasonOf maps an error returned by this package to its Reason. Errors it
// does not recognize are reported as validation failures.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	switch errors.Cause(err) {
	case memory.ErrInvalidMemoryAccess, memory.ErrShortBuffer:
		return ReasonTranslation
	case memory.ErrBadRegionRequest, memory.ErrOverlap, ErrInvalidPort:
		return ReasonValidation
	case memory.ErrUnmapMismatch:
		return ReasonMismatch
	case memory.ErrBadBreak, memory.ErrOutOfFrames:
		return ReasonBound
	default:
		return ReasonValidation
	}
}

// result collapses err to the user-visible return value, logging the
// failure.
func result(l hclog.Logger, name string, err error) int64 {
	if err != nil {
		l.Warn("syscall failed", "name", name, "reason", ReasonOf(err), "error", err)
		return Fail
	}

	return 0
}
