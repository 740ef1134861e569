// Package notify is the user-facing notification sink. Presentation (toast,
// banner, terminal line) belongs to the implementation.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
)

// Notice is one message for the user.
type Notice struct {
	Level   Level
	Message string
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Log writes notices to a structured logger.
type Log struct {
	log *slog.Logger
}

// NewLog returns a Notifier backed by log.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(ctx context.Context, n Notice) {
	level := slog.LevelInfo
	if n.Level == LevelFailure {
		level = slog.LevelWarn
	}
	l.log.Log(ctx, level, "notice", "level", string(n.Level), "message", n.Message)
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, nf := range m {
		nf.Notify(ctx, n)
	}
}

// Discard drops every notice.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(context.Context, Notice) {}
