package attendancectl

// State is the attendance of a student as shown to the user.
type State int

const (
	Unmarked State = iota
	Present
	Absent
)

// Next is the state a toggle moves to. Unmarked is only left, never re-entered.
func (s State) Next() State {
	if s == Present {
		return Absent
	}
	return Present
}

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unmarked"
	}
}

func stateOf(attended bool) State {
	if attended {
		return Present
	}
	return Absent
}
