// Package log is a thin layer over glog used across the service.
package log

import (
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Infof logs at info level
func Infof(format string, args ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf(format, args...))
}

// Warningf logs at warning level
func Warningf(format string, args ...interface{}) {
	glog.WarningDepth(1, fmt.Sprintf(format, args...))
}

// Errorf logs at error level
func Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

// Fatalf logs at fatal level and exits the process
func Fatalf(format string, args ...interface{}) {
	glog.FatalDepth(1, fmt.Sprintf(format, args...))
}

// V reports whether verbose logging at the given level is enabled
func V(level int) bool {
	return bool(glog.V(glog.Level(level)))
}

// TimeTrack logs time elapsed since start. Meant to be deferred.
func TimeTrack(start time.Time, name string) {
	glog.InfoDepth(1, fmt.Sprintf("%s took %s", name, time.Since(start)))
}

// Flush writes any buffered log entries
func Flush() {
	glog.Flush()
}
