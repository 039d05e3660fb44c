package runner

type Command int

const (
	CmdRecheck Command = iota + 1
	CmdIncreaseInterval
	CmdDecreaseInterval
	CmdStop
)

func (c Command) String() string {
	switch c {
	case CmdRecheck:
		return "recheck"
	case CmdIncreaseInterval:
		return "increase-interval"
	case CmdDecreaseInterval:
		return "decrease-interval"
	case CmdStop:
		return "stop"
	default:
		return "unknown"
	}
}

// ParseCommand maps control endpoint names onto commands.
func ParseCommand(name string) (Command, bool) {
	switch name {
	case "recheck":
		return CmdRecheck, true
	case "increase":
		return CmdIncreaseInterval, true
	case "decrease":
		return CmdDecreaseInterval, true
	case "stop":
		return CmdStop, true
	}
	return 0, false
}
