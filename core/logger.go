package core

// Logger is any service that can log messages. args may carry errors, maps of extras and a Person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the caller an error happened for.
type Person struct {
	ID       string
	Username string
	Email    string
}
