package core

// Logger is any leveled logger. `args` may carry an error, a map[string]interface{} of extra
// fields and/or an Actor, implementations decide how to report them.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
