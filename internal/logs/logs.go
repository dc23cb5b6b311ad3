package logs

import (
	"io"
	"os"
	"sync"

	"github.com/0xa1bed0/imgship/internal/ui"
	"github.com/moby/term"
)

var (
	initOnce sync.Once
	logger   *ui.Logger
)

func Init() {
	initOnce.Do(func() {
		_, isTerm := term.GetFdInfo(os.Stdout)
		opts := ui.Options{
			Out:      os.Stdout,
			LogLevel: ui.LogLevelWarn,
			Plain:    !isTerm,
		}
		logger = ui.New(opts)
		logger.Debug("logs initialized with opts %+v", opts)
	})
}

func L() *ui.Logger {
	Init()
	return logger
}

func SetDebugVerbosity(cnt int) {
	switch {
	case cnt <= 0:
		L().SetLogLevel(ui.LogLevelWarn)
	case cnt == 1:
		L().SetLogLevel(ui.LogLevelDebug)
	default:
		L().SetLogLevel(ui.LogLevelDebugVerbose)
	}
}

func SetComponent(component string) {
	L().SetComponent(component)
}

// SetWorkflowCommands toggles GitHub Actions workflow command output.
func SetWorkflowCommands(enabled bool) {
	L().SetWorkflow(enabled)
}

func SetFullLogWriter(w io.Writer) {
	L().SetFullLogWriter(w)
}

// Writer is where child process output should be streamed.
func Writer() io.Writer {
	return L().Out()
}

func Infof(format string, args ...any) {
	L().Info(format, args...)
}

func Debugf(format string, args ...any) {
	L().Debug(format, args...)
}

func Warnf(format string, args ...any) {
	L().Warn(format, args...)
}

func Errorf(format string, args ...any) {
	L().Error(format, args...)
}

// Group opens a named log section. Pair every call with EndGroup.
func Group(title string) {
	L().Section(title)
}

func EndGroup() {
	L().EndSection()
}

// Fail reports the message as the run's failure reason.
func Fail(msg string) {
	L().Fail(msg)
}

// Close closes the underlying log file, if any.
func Close() error {
	if logger != nil {
		return logger.Close()
	}
	return nil
}
