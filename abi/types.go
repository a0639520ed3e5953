package abi

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ByteOrder is the layout used for every structure copied across the user
// boundary.
var ByteOrder = binary.LittleEndian

type TaskStatus uint32

const (
	UnInit  TaskStatus = 0
	Ready   TaskStatus = 1
	Running TaskStatus = 2
	Exited  TaskStatus = 3
)

func (s TaskStatus) String() string {
	switch s {
	case UnInit:
		return "uninit"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// TimeVal is the get_time result.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// TimeValFromMicros splits a microsecond count into seconds and the
// sub-second remainder.
func TimeValFromMicros(us uint64) TimeVal {
	return TimeVal{
		Sec:  us / 1000000,
		Usec: us % 1000000,
	}
}

func (tv TimeVal) Micros() uint64 {
	return tv.Sec*1000000 + tv.Usec
}

// TaskInfo is the task_info result. The blank field keeps the C layout, where
// the trailing 8 byte word is aligned after the counter table.
type TaskInfo struct {
	Status       TaskStatus
	SyscallTimes [MaxSyscallNum]uint32
	_            uint32
	Time         uint64
}

var (
	TimeValSize  = binary.Size(TimeVal{})
	TaskInfoSize = binary.Size(TaskInfo{})
)

// Marshal encodes v (a TimeVal or TaskInfo) into its user-visible layout.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer

	err := binary.Write(&buf, ByteOrder, v)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes a user-visible layout into v.
func Unmarshal(b []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(b), ByteOrder, v)
}
