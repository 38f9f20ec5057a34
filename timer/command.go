package timer

import "fmt"

// Command is an externally requested transition. Time-driven transitions
// happen through Advance instead.
type Command uint8

const (
	_ Command = iota
	Start
	Pause
	Resume
	Reset
	RequestFinish
)

func (c Command) String() string {
	switch c {
	case Start:
		return "start"
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	case Reset:
		return "reset"
	case RequestFinish:
		return "finish"
	default:
		panic(fmt.Sprintf("no matching enum for Command: %d", c))
	}
}
