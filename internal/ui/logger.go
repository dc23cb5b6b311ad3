package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// syncer is an interface for types that can sync to disk.
// Both *os.File and *TimestampWriter implement this.
type syncer interface {
	Sync() error
}

type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelDebug
	LogLevelDebugVerbose
)

const timestampLayout = "2006-01-02T15:04:05.000"

// Options configures the Logger.
type Options struct {
	// Out is where we print user-facing logs.
	// In most cases this should be os.Stdout.
	Out io.Writer

	// FullLogWriter, if non-nil, receives all logs in plain text regardless of level.
	FullLogWriter io.Writer

	// LogLevel control amount of logs print to stdout
	// greater the number => more logs coming out
	// error < info < warn < debug < debugVerbose
	LogLevel LogLevel

	// Plain disables lipgloss styling. Set it when Out is not a terminal.
	Plain bool

	// Workflow switches sections and failures to GitHub Actions workflow
	// commands (::group::, ::endgroup::, ::error::).
	Workflow bool

	// Component identifies the source of log messages.
	// If empty, no component tag is included in log output.
	Component string
}

// Logger prints leveled, timestamped lines and named sections.
type Logger struct {
	out       io.Writer
	full      io.Writer
	mu        sync.Mutex
	style     styles
	component string
	workflow  bool

	logLevel LogLevel

	// sections is the stack of currently open section titles.
	sections []string
}

type styles struct {
	logInfo  lipgloss.Style
	logWarn  lipgloss.Style
	logError lipgloss.Style
	section  lipgloss.Style
}

func defaultStyles(plain bool) styles {
	if plain {
		return styles{
			logInfo:  lipgloss.NewStyle(),
			logWarn:  lipgloss.NewStyle(),
			logError: lipgloss.NewStyle(),
			section:  lipgloss.NewStyle(),
		}
	}
	return styles{
		logInfo:  lipgloss.NewStyle(),
		logWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // orange-ish
		logError: lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // red
		section:  lipgloss.NewStyle().Bold(true).Border(lipgloss.NormalBorder()).Padding(0, 1),
	}
}

// New creates a new Logger.
func New(opts Options) *Logger {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	return &Logger{
		out:       opts.Out,
		full:      opts.FullLogWriter,
		style:     defaultStyles(opts.Plain || opts.Workflow),
		logLevel:  opts.LogLevel,
		component: opts.Component,
		workflow:  opts.Workflow,
	}
}

// Out returns the writer user-facing output goes to. Child process output is
// streamed here so it interleaves with our own lines.
func (l *Logger) Out() io.Writer {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.full == nil {
		return l.out
	}
	return io.MultiWriter(l.out, l.full)
}

func (l *Logger) SetFullLogWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.full = w
}

func (l *Logger) SetComponent(component string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.component = component
}

func (l *Logger) SetWorkflow(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workflow = enabled
	if enabled {
		l.style = defaultStyles(true)
	}
}

// Close closes any sections left open and the full log if it's an io.Closer.
func (l *Logger) Close() error {
	for {
		l.mu.Lock()
		open := len(l.sections)
		l.mu.Unlock()
		if open == 0 {
			break
		}
		l.EndSection()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.full.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *Logger) Error(format string, args ...any) {
	l.printLog(false, "ERR ", l.style.logError, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	silent := l.logLevel < LogLevelInfo
	l.printLog(silent, "INFO", l.style.logInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	silent := l.logLevel < LogLevelWarn
	l.printLog(silent, "WARN", l.style.logWarn, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	silent := l.logLevel < LogLevelDebug
	l.printLog(silent, "DEBG", l.style.logInfo, format, args...)
}

func (l *Logger) SetLogLevel(logLevel LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logLevel = logLevel
}

// Fail reports the run failure. Under GitHub Actions it becomes an ::error::
// annotation on the run; otherwise it is an ERR line.
func (l *Logger) Fail(msg string) {
	l.mu.Lock()
	workflow := l.workflow
	l.mu.Unlock()

	if !workflow {
		l.Error("%s", msg)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeFullLogLocked("[ERR ] " + msg + "\n")
	fmt.Fprintf(l.out, "::error::%s\n", escapeWorkflowData(msg))
}

// Section opens a named, collapsible log section.
func (l *Logger) Section(title string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sections = append(l.sections, title)
	l.writeFullLogLocked(fmt.Sprintf("\n===== %s =====\n\n", title))
	if s, ok := l.full.(syncer); ok {
		s.Sync()
	}

	if l.workflow {
		fmt.Fprintf(l.out, "::group::%s\n", escapeWorkflowData(title))
		return
	}
	fmt.Fprintln(l.out, l.style.section.Render(title))
}

// EndSection closes the innermost open section. Extra calls are ignored.
func (l *Logger) EndSection() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.sections) == 0 {
		return
	}
	title := l.sections[len(l.sections)-1]
	l.sections = l.sections[:len(l.sections)-1]

	l.writeFullLogLocked(fmt.Sprintf("===== end %s =====\n", title))
	if l.workflow {
		fmt.Fprintln(l.out, "::endgroup::")
	}
}

func (l *Logger) writeFullLogLocked(line string) {
	if l.full != nil {
		io.WriteString(l.full, line)
	}
}

func (l *Logger) formatCaller(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.logLevel < LogLevelDebugVerbose {
		return msg
	}
	pc, file, line, ok := runtime.Caller(4)
	if !ok {
		file = "?"
		line = 0
	}

	fn := runtime.FuncForPC(pc)
	var fnName string
	if fn != nil {
		fnName = strings.ReplaceAll(fn.Name(), "github.com/0xa1bed0/imgship", "")
	}

	return fmt.Sprintf("[%s:%d %s] %s", filepath.Base(file), line, fnName, msg)
}

func (l *Logger) printLog(silent bool, level string, style lipgloss.Style, format string, args ...any) {
	msg := l.formatCaller(format, args...)
	timestamp := time.Now().Format(timestampLayout)

	l.mu.Lock()
	defer l.mu.Unlock()

	componentTag := ""
	if l.component != "" {
		componentTag = fmt.Sprintf("[%s] ", l.component)
	}

	// full log gets no timestamp, TimestampWriter adds it at the destination
	l.writeFullLogLocked(fmt.Sprintf("[%s] %s%s\n", level, componentTag, msg))

	if silent {
		return
	}
	stdoutLine := fmt.Sprintf("[%s] [%s] %s%s", timestamp, level, componentTag, msg)
	fmt.Fprintln(l.out, style.Render(stdoutLine))
}

// escapeWorkflowData escapes the characters GitHub Actions treats specially in
// workflow command data.
func escapeWorkflowData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}
