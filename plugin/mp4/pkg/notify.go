package mp4

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Notifier receives human readable progress of a rewrite. It is purely
// observational, a nil Notifier changes nothing.
type Notifier interface {
	Message(message string)
	Error(message string)
	Warning(message string)
	Verbose(message string)
	UpdateProgress(current, total int64, label string)
}

// OutputFactory creates the destination of a rewrite. Delete is only called
// after Create succeeded and the rewrite failed afterwards.
type OutputFactory interface {
	Create() (io.WriteCloser, error)
	Delete() error
}

func (fs *FastStart) format(msg string, args []any) string {
	var sb strings.Builder
	if fs.TaskName != "" {
		sb.WriteString("[")
		sb.WriteString(fs.TaskName)
		sb.WriteString("]-")
	}
	sb.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", args[i], args[i+1])
	}
	return sb.String()
}

// log writes to Logger, or slog.Default when unset, with the task name as a
// record attribute. The logger is shared between concurrent runs.
func (fs *FastStart) log(level slog.Level, msg string, args []any) {
	logger := fs.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(context.Background(), level) {
		return
	}
	if fs.TaskName != "" {
		args = append([]any{"task", fs.TaskName}, args...)
	}
	logger.Log(context.Background(), level, msg, args...)
}

func (fs *FastStart) verbose(msg string, args ...any) {
	if fs.Notify != nil {
		fs.Notify.Verbose(fs.format(msg, args))
	}
	fs.log(slog.LevelDebug, msg, args)
}

func (fs *FastStart) message(msg string, args ...any) {
	if fs.Notify != nil {
		fs.Notify.Message(fs.format(msg, args))
	}
	fs.log(slog.LevelInfo, msg, args)
}

func (fs *FastStart) warning(msg string, args ...any) {
	if fs.Notify != nil {
		fs.Notify.Warning(fs.format(msg, args))
	}
	fs.log(slog.LevelWarn, msg, args)
}

func (fs *FastStart) error(msg string, args ...any) {
	if fs.Notify != nil {
		fs.Notify.Error(fs.format(msg, args))
	}
	fs.log(slog.LevelError, msg, args)
}

func (fs *FastStart) progress(current, total int64, label string) {
	if fs.Notify != nil {
		fs.Notify.UpdateProgress(current, total, fs.format(label, nil))
	}
	if fs.OutputProgressLog {
		fs.log(slog.LevelInfo, "progress", []any{"label", label, "current", current, "total", total})
	}
}
