// Package notify delivers the one-line outcome messages shown to the
// operator after each action.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(Notification)
}

func Success(n Notifier, message string) {
	n.Notify(Notification{Level: LevelSuccess, Message: message, At: time.Now()})
}

func Error(n Notifier, message string) {
	n.Notify(Notification{Level: LevelError, Message: message, At: time.Now()})
}

// Log writes notifications to a logrus logger.
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Notify(n Notification) {
	entry := l.Logger.WithField("notification", string(n.Level))
	if n.Level == LevelError {
		entry.Warn(n.Message)
		return
	}
	entry.Info(n.Message)
}

// Console prints notifications for a terminal operator.
type Console struct {
	Out io.Writer
}

func (c Console) Notify(n Notification) {
	prefix := "OK"
	if n.Level == LevelError {
		prefix = "ERROR"
	}
	fmt.Fprintf(c.Out, "[%s] %s\n", prefix, n.Message)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Count returns how many notifications of level were received.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.Level == level {
			n++
		}
	}
	return n
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}
