// Provide application-wide logging with pre-defined log levels.
// It is just concerned with putting strings into the designated
// buffers and thus hides stuff like Panic() or Fatal().
//
// By default logs of level WARNING and ERROR are printed to stderr.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

func init() {
	Initialize(LevelWarning, nil, nil)
}

type LogLevel int

const (
	LevelNone LogLevel = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
)

var levelNames = []string{"none", "error", "warning", "info", "debug"}

func (l LogLevel) String() string {
	if l < LevelNone || int(l) >= len(levelNames) {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a level name as used in configuration files
// (none, error, warning, info, debug) to its LogLevel, ignoring case.
func ParseLevel(s string) (LogLevel, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return LogLevel(i), nil
		}
	}
	return LevelNone, fmt.Errorf("unknown log level '%s'", s)
}

// one logger per level, index LevelNone unused
var loggers [LevelDebug + 1]*log.Logger

type nilWriter struct{}

func (ni nilWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

var nilLogger = log.New(nilWriter{}, "", 0)

// Initialize the application wide logger to a specific log level.
// This should ideally be called once at the beginning of the application.
// Custom writers can be specified as well: errWriter will be used for
// log levels ERROR and WARNING, logWriter for everything else.
// These may be set to nil, in which case they default to stdout and stderr.
func Initialize(l LogLevel, logWriter io.Writer, errWriter io.Writer) {
	if logWriter == nil {
		logWriter = os.Stdout
	}

	if errWriter == nil {
		errWriter = os.Stderr
	}

	for level := LevelError; level <= LevelDebug; level++ {
		if level > l {
			loggers[level] = nilLogger
			continue
		}

		w := logWriter
		if level <= LevelWarning {
			w = errWriter
		}
		loggers[level] = log.New(w, strings.ToUpper(level.String())+": ", log.LstdFlags)
	}
}

func Error(s string) {
	loggers[LevelError].Print(s)
}

func Errorf(format string, v ...any) {
	loggers[LevelError].Printf(format, v...)
}

func Warning(s string) {
	loggers[LevelWarning].Print(s)
}

func Warningf(format string, v ...any) {
	loggers[LevelWarning].Printf(format, v...)
}

func Info(s string) {
	loggers[LevelInfo].Print(s)
}

func Infof(format string, v ...any) {
	loggers[LevelInfo].Printf(format, v...)
}

func Debug(s string) {
	loggers[LevelDebug].Print(s)
}

func Debugf(format string, v ...any) {
	loggers[LevelDebug].Printf(format, v...)
}
