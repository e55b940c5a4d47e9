package core

// Logger is the application logger.
// args may contain an error, a map[string]interface{} of extra fields, or a Person to
// attach to reported events.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the authenticated caller of a logged event.
type Person struct {
	ID       string
	Role     string
	SchoolID string
}
