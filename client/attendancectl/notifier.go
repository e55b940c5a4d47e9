package attendancectl

import "fmt"

type Level int

const (
	LevelWarning Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "warning"
}

// Notice is a user-visible message about a toggle.
type Notice struct {
	Level     Level
	LessonID  string
	StudentID string
	Message   string
	Err       error
}

func (n Notice) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s: %s: %v", n.Level, n.Message, n.Err)
	}
	return fmt.Sprintf("%s: %s", n.Level, n.Message)
}

type Notifier interface {
	Notify(n Notice)
}

// ChanNotifier delivers notices on C. Notices are dropped when C is full.
type ChanNotifier struct {
	C chan Notice
}

func NewChanNotifier(size int) *ChanNotifier {
	return &ChanNotifier{C: make(chan Notice, size)}
}

func (n *ChanNotifier) Notify(notice Notice) {
	select {
	case n.C <- notice:
	default:
	}
}
