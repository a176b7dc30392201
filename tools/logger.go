package tools

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

var isEnabled atomic.Bool
var printTimestamp atomic.Bool

func init() {
	isEnabled.Store(true)
	printTimestamp.Store(true)
	log.SetFlags(0)
}

func EnableLogger() {
	isEnabled.Store(true)
}

func DisableLogger() {
	isEnabled.Store(false)
}

func EnableLoggerTimestamp() {
	printTimestamp.Store(true)
}

func DisableLoggerTimestamp() {
	printTimestamp.Store(false)
}

// LogOutput prints val on the console. Every line is also kept in the glog files.
func LogOutput(val ...interface{}) {
	line := fmt.Sprintln(val...)
	glog.V(2).Info(line)
	if !isEnabled.Load() {
		return
	}
	if printTimestamp.Load() {
		line = "[" + time.Now().Format("2006-01-02 15.04:05.000") + "] " + line
	}
	log.Print(line)
}

// LogProgress rewrites the current terminal line, for counters that change quickly.
func LogProgress(format string, args ...interface{}) {
	if isEnabled.Load() {
		fmt.Fprintf(os.Stdout, "\r"+format+"          ", args...)
	}
}

// Timer measures the phases of a command the way they are reported: "done [1.234s]".
type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Done() string {
	return fmt.Sprintf("done [%s]", time.Since(t.start).Round(time.Millisecond))
}
