package agenda

import (
	"errors"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Notice is a non-fatal message for the user.
type Notice struct {
	Level   Level
	Message string
	Err     error
}

// Notifier is the single side channel through which failures reach the user.
type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}

// LogNotifier writes notices to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	ev := l.Logger.Info()
	switch n.Level {
	case LevelWarning:
		ev = l.Logger.Warn()
	case LevelError:
		ev = l.Logger.Error()
	}
	if n.Err != nil {
		ev = ev.Err(n.Err)
	}
	ev.Msg(n.Message)
}

// noticeFor picks the level of a failure. Local checks are warnings, backend
// problems are errors.
func noticeFor(err error) Notice {
	level := LevelWarning
	var re *RemoteError
	if errors.As(err, &re) {
		level = LevelError
	}
	return Notice{Level: level, Message: Message(err), Err: err}
}
