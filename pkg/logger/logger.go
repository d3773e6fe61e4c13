// Package logger provides the plain logger used before the slog
// configuration has been loaded.
package logger

import (
	"log"
	"os"
)

// Bootstrap returns a stderr logger tagged with component.
func Bootstrap(component string) *log.Logger {
	return log.New(os.Stderr, component+": ", log.LstdFlags|log.Lmsgprefix)
}
