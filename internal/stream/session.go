package stream

import (
	"sync"
	"sync/atomic"

	"github.com/joelkehle/hmrc-complaints/internal/lettergen"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

type Event struct {
	Type EventType
	Data any
}

type ProgressData struct {
	Stage   lettergen.Stage `json:"stage"`
	Percent int             `json:"percent"`
	Message string          `json:"message"`
}

type CompleteData struct {
	SessionID string           `json:"session_id"`
	Letter    lettergen.Letter `json:"letter"`
}

type ErrorData struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Session is one letter generation run. Stages only move forward and at
// most one terminal event is ever recorded. Callers must drain Events or
// call Cancel.
type Session struct {
	ID string

	mu       sync.Mutex
	stage    lettergen.Stage
	outputs  map[lettergen.Stage]string
	terminal *Event

	cancelled  atomic.Bool
	cancelOnce sync.Once
	done       chan struct{}
	events     chan Event
	finished   chan struct{}
}

func newSession(id string) *Session {
	return &Session{
		ID:       id,
		stage:    lettergen.StageStarting,
		outputs:  map[lettergen.Stage]string{},
		done:     make(chan struct{}),
		events:   make(chan Event),
		finished: make(chan struct{}),
	}
}

// Events is closed after the terminal event, or after the pipeline stops
// when the session was cancelled.
func (s *Session) Events() <-chan Event { return s.events }

// Cancel marks the subscriber as gone. The running stage finishes, no later
// stage starts and nothing more is delivered.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() {
		s.cancelled.Store(true)
		close(s.done)
	})
}

func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Wait blocks until the pipeline goroutine has returned.
func (s *Session) Wait() { <-s.finished }

func (s *Session) Stage() lettergen.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) Outputs() map[lettergen.Stage]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[lettergen.Stage]string, len(s.outputs))
	for k, v := range s.outputs {
		out[k] = v
	}
	return out
}

func (s *Session) Terminal() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal == nil {
		return Event{}, false
	}
	return *s.terminal, true
}

func (s *Session) advance(stage lettergen.Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal != nil || stage.Rank() < s.stage.Rank() {
		return false
	}
	s.stage = stage
	return true
}

func (s *Session) recordOutput(stage lettergen.Stage, output string) {
	s.mu.Lock()
	s.outputs[stage] = output
	s.mu.Unlock()
}

func (s *Session) progress(stage lettergen.Stage, percent int, message string) {
	if !s.advance(stage) {
		return
	}
	s.deliver(Event{Type: EventProgress, Data: ProgressData{Stage: stage, Percent: percent, Message: message}})
}

// finish records the terminal event once; later calls are ignored.
func (s *Session) finish(evt Event) bool {
	s.mu.Lock()
	if s.terminal != nil {
		s.mu.Unlock()
		return false
	}
	s.terminal = &evt
	if evt.Type == EventComplete {
		s.stage = lettergen.StageComplete
	} else {
		s.stage = lettergen.StageFailed
	}
	s.mu.Unlock()
	s.deliver(evt)
	return true
}

func (s *Session) deliver(evt Event) {
	if s.Cancelled() {
		return
	}
	select {
	case s.events <- evt:
	case <-s.done:
	}
}

func (s *Session) close() {
	close(s.events)
	close(s.finished)
}
