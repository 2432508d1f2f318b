// Package ftxlog is the engine's leveled logger.
//
// Calls are always shaped like the teacher's fs.Errorf/fs.Debugf: the
// first argument is whatever is being talked about (a worker, a file
// entry, or nil for a global message), followed by a format string.
package ftxlog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level controls which messages reach the output logger.
type Level int32

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

var (
	level  atomic.Int32
	output = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	level.Store(int32(LevelInfo))
}

// SetLevel changes the minimum level that reaches the output logger.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(l *log.Logger) {
	output = l
}

func enabled(l Level) bool {
	return Level(level.Load()) >= l
}

func label(obj interface{}) string {
	if obj == nil {
		return ""
	}
	if s, ok := obj.(fmt.Stringer); ok {
		return s.String() + ": "
	}
	return fmt.Sprintf("%v: ", obj)
}

// Errorf logs a fault. Always emitted regardless of level.
func Errorf(obj interface{}, format string, args ...interface{}) {
	output.Printf("ERROR: "+label(obj)+format, args...)
}

// Logf logs a message the user should normally see.
func Logf(obj interface{}, format string, args ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	output.Printf(label(obj) + fmt.Sprintf(format, args...))
}

// Infof logs an informational message, same level as Logf.
func Infof(obj interface{}, format string, args ...interface{}) {
	Logf(obj, format, args...)
}

// Debugf logs a verbose diagnostic message.
func Debugf(obj interface{}, format string, args ...interface{}) {
	if !enabled(LevelDebug) {
		return
	}
	output.Printf("DEBUG: " + label(obj) + fmt.Sprintf(format, args...))
}
