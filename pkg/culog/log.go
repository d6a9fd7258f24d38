// Package culog is the compositor's structured logger: a small,
// dependency-free event builder broadcasting over channels to any
// number of subscribers, with optional sinks to stdout and sqlite.
//
// API inspired by zerolog https://github.com/rs/zerolog, adapted from
// the chained event builder used throughout the NVR this was grown
// from.
package culog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bialy-nvr/compositor/pkg/media"
)

// Level defines log severity.
type Level uint8

// Logging levels, ordered low-to-high severity.
const (
	LevelDebug Level = 10
	LevelInfo  Level = 20
	LevelWarn  Level = 30
	LevelError Level = 40
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry is a fully-built log record, the unit sent over a feed.
type Entry struct {
	Time   time.Time
	Level  Level
	Src    string
	Input  media.InputId
	Output media.OutputId
	Msg    string
}

// Event is an in-progress log record. Call Msg or Msgf to send it.
type Event struct {
	entry  Entry
	logger *Logger
}

// Src sets the subsystem the event originates from, e.g. "orchestrator".
func (e *Event) Src(src string) *Event {
	e.entry.Src = src
	return e
}

// Input attaches the input this event concerns.
func (e *Event) Input(id media.InputId) *Event {
	e.entry.Input = id
	return e
}

// Output attaches the output this event concerns.
func (e *Event) Output(id media.OutputId) *Event {
	e.entry.Output = id
	return e
}

// Msg finalizes and sends the event.
func (e *Event) Msg(msg string) {
	e.entry.Msg = msg
	e.logger.publish(e.entry)
}

// Msgf formats and sends the event.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Msg(fmt.Sprintf(format, v...))
}

type feed chan Entry

// Logger fans out log entries to subscribers and optional sinks.
type Logger struct {
	mu    sync.Mutex
	subs  map[feed]struct{}
	feedC feed
	wg    sync.WaitGroup
}

// NewLogger returns a running Logger. Call Close to stop its fan-out
// goroutine once all producers are done.
func NewLogger() *Logger {
	l := &Logger{
		subs:  map[feed]struct{}{},
		feedC: make(feed, 64),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Logger) run() {
	defer l.wg.Done()
	for entry := range l.feedC {
		l.mu.Lock()
		for sub := range l.subs {
			select {
			case sub <- entry:
			default: // slow subscriber, drop rather than block producers
			}
		}
		l.mu.Unlock()
	}
}

func (l *Logger) publish(e Entry) {
	l.feedC <- e
}

// CancelFunc unsubscribes a feed previously returned by Subscribe.
type CancelFunc func()

// Subscribe returns a channel of future log entries and a function to
// stop receiving them.
func (l *Logger) Subscribe() (<-chan Entry, CancelFunc) {
	ch := make(feed, 16)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	return ch, func() {
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
		close(ch)
	}
}

// Close stops accepting new entries and ends the fan-out goroutine.
func (l *Logger) Close() {
	close(l.feedC)
	l.wg.Wait()
}

func (l *Logger) newEvent(lvl Level) *Event {
	return &Event{entry: Entry{Time: time.Now(), Level: lvl}, logger: l}
}

// Debug starts a debug-level event.
func (l *Logger) Debug() *Event { return l.newEvent(LevelDebug) }

// Info starts an info-level event.
func (l *Logger) Info() *Event { return l.newEvent(LevelInfo) }

// Warn starts a warn-level event.
func (l *Logger) Warn() *Event { return l.newEvent(LevelWarn) }

// Error starts an error-level event.
func (l *Logger) Error() *Event { return l.newEvent(LevelError) }

// LogToStdout prints every entry until cancel is called; run it in its
// own goroutine.
func LogToStdout(ch <-chan Entry) {
	for e := range ch {
		fmt.Println(format(e))
	}
}

func format(e Entry) string {
	var b strings.Builder
	b.WriteString("[" + e.Level.String() + "] ")
	if e.Src != "" {
		b.WriteString(e.Src + ": ")
	}
	if e.Input != "" {
		b.WriteString("input=" + string(e.Input) + " ")
	}
	if e.Output != "" {
		b.WriteString("output=" + string(e.Output) + " ")
	}
	b.WriteString(e.Msg)
	return b.String()
}
