package bulk_duplicator

import "fmt"

// TaskState tracks a reader or writer through its lifecycle:
// Idle -> Reading|Writing -> Finished|Failed.
type TaskState int32

const (
	StateIdle TaskState = iota
	StateReading
	StateWriting
	StateFinished
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}
