package errors

import "fmt"

var (
	ErrSessionPanic    = fmt.Errorf("session panic")
	ErrAuthInterrupted = fmt.Errorf("token capture interrupted")
)
