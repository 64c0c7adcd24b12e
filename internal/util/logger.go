package util

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Command output (tables, yaml) goes to stdout; log lines go
// to stderr.
var Log = logrus.New()

func InitLogger(debug bool) {
	InitLoggerWithOutput(os.Stderr, debug)
}

// InitLoggerWithOutput is InitLogger with an explicit destination, used by tests to capture
// log lines.
func InitLoggerWithOutput(out io.Writer, debug bool) {
	Log.SetOutput(out)
	if debug {
		Log.SetLevel(logrus.DebugLevel)
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				s := strings.Split(f.Function, ".")
				funcname := s[len(s)-1]
				filename := filepath.Base(f.File)
				return funcname, " [" + filename + ":" + strconv.Itoa(f.Line) + "]"
			},
		})
		Log.SetReportCaller(true)
		Log.Debug("Debug logging enabled")
	} else {
		Log.SetLevel(logrus.InfoLevel)
		Log.SetReportCaller(false)
		Log.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp:       true,
			DisableLevelTruncation: true,
		})
	}
}
