package core

// Person identifies the signed-in user in reported errors.
type Person struct {
	ID       string
	Username string
	Email    string
}

// Logger logs messages and reports errors.
// expected args: error, map[string]interface{} (extras), Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
