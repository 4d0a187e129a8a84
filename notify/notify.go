package notify

import (
	"time"

	"github.com/sitsofe/pos-terminal/observable"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient, dismissible message for the operator.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is what components use to surface soft outcomes.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Center broadcasts notices to every subscribed UI feed.
type Center struct {
	stream *observable.Stream[Notice]
}

func NewCenter() *Center {
	return &Center{stream: observable.NewStream[Notice](32)}
}

func (c *Center) Info(msg string)  { c.publish(LevelInfo, msg) }
func (c *Center) Warn(msg string)  { c.publish(LevelWarning, msg) }
func (c *Center) Error(msg string) { c.publish(LevelError, msg) }

// Subscribe returns a feed of notices published after the call.
func (c *Center) Subscribe() (<-chan Notice, func()) {
	return c.stream.Subscribe()
}

func (c *Center) publish(level Level, msg string) {
	c.stream.Publish(Notice{Level: level, Message: msg, At: time.Now()})
}
