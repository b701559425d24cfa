package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/domain/tenant"
	"github.com/medinexus/hms/internal/platform/speech"
)

// Recorder receives assistant lifecycle events for metrics.
type Recorder interface {
	AssistantExchange(outcome string)
	AssistantFragment()
	AssistantStale()
	AssistantSessionOpened()
	AssistantSessionClosed()
	Dictation(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AssistantExchange(string) {}
func (nopRecorder) AssistantFragment()       {}
func (nopRecorder) AssistantStale()          {}
func (nopRecorder) AssistantSessionOpened()  {}
func (nopRecorder) AssistantSessionClosed()  {}
func (nopRecorder) Dictation(string)         {}

const (
	outcomeCompleted   = "completed"
	outcomeFailed      = "failed"
	outcomeStale       = "stale"
	outcomeUnavailable = "unavailable"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Provider    Provider
	Transcriber speech.Transcriber
	Tenants     tenant.Directory
	Listener    Listener
	Recorder    Recorder
	Logger      zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Transcriber == nil {
		d.Transcriber = speech.Unavailable{}
	}
	if d.Listener == nil {
		d.Listener = nopListener{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	return d
}

// Session is one actor's assistant conversation.
//
// Every Open and Close increments the generation. Asynchronous results
// (conversation creation, stream fragments, transcripts) carry the
// generation they were started under and are dropped when it no longer
// matches, so a reopened or closed session is never written to by work
// belonging to an earlier lifetime.
type Session struct {
	deps Deps

	mu          sync.Mutex
	actor       *access.Actor
	generation  uint64
	conv        Conversation
	cancel      context.CancelFunc
	turns       []ChatTurn
	nextID      uint64
	input       string
	state       State
	dictation   DictationState
	noticeShown bool
}

func NewSession(deps Deps) *Session {
	return &Session{
		deps:      deps.withDefaults(),
		state:     StateClosed,
		dictation: DictationIdle,
	}
}

// Open starts a fresh lifetime: the transcript is reset to the greeting and
// a new provider conversation is created. A failed creation is logged and
// retried on the next Send.
func (s *Session) Open(ctx context.Context, actor *access.Actor) {
	s.mu.Lock()
	wasClosed := s.state == StateClosed
	s.generation++
	gen := s.generation
	s.abortLocked()
	s.actor = actor
	s.conv = nil
	s.turns = nil
	s.input = ""
	s.noticeShown = false
	s.dictation = DictationIdle
	s.appendTurnLocked(RoleAssistant, Greeting(actor))
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if wasClosed {
		s.deps.Recorder.AssistantSessionOpened()
	}

	conv, err := s.createConversation(ctx, actor)
	if err != nil {
		s.loggerFor(actor).Warn().Err(err).Msg("assistant conversation create failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.deps.Recorder.AssistantStale()
		return
	}
	if s.conv == nil {
		s.conv = conv
	}
}

// Close ends the current lifetime. Pending work from it becomes stale.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.generation++
	s.abortLocked()
	s.conv = nil
	s.dictation = DictationIdle
	s.setStateLocked(StateClosed)
	s.deps.Recorder.AssistantSessionClosed()
}

func (s *Session) SetInput(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.input = text
	return nil
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Send submits text and applies the streamed reply to the transcript. It
// blocks until the stream ends or the lifetime changes. Upstream failures
// are shown as a fallback turn and do not surface as errors.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return ErrEmptyMessage
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	gen := s.generation
	actor := s.actor
	s.appendTurnLocked(RoleUser, text)
	s.input = ""
	s.setStateLocked(StateAwaitingResponse)
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	conv := s.conv
	s.mu.Unlock()
	defer cancel()

	if conv == nil {
		created, err := s.createConversation(ctx, actor)
		if err != nil {
			s.fail(gen, err)
			return nil
		}
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			s.deps.Recorder.AssistantStale()
			s.deps.Recorder.AssistantExchange(outcomeStale)
			return nil
		}
		if s.conv == nil {
			s.conv = created
		}
		conv = s.conv
		s.mu.Unlock()
	}

	stream, err := conv.SendStream(ctx, text)
	if err != nil {
		s.fail(gen, err)
		return nil
	}
	s.consume(gen, stream)
	return nil
}

func (s *Session) consume(gen uint64, stream <-chan Fragment) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.drain(stream)
		s.deps.Recorder.AssistantExchange(outcomeStale)
		return
	}
	placeholder := s.appendTurnLocked(RoleAssistant, "")
	s.setStateLocked(StateStreaming)
	s.mu.Unlock()

	var acc strings.Builder
	for frag := range stream {
		if frag.Err != nil {
			s.fail(gen, frag.Err)
			s.drain(stream)
			return
		}
		if frag.Text == "" {
			continue
		}
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			s.deps.Recorder.AssistantStale()
			s.drain(stream)
			s.deps.Recorder.AssistantExchange(outcomeStale)
			return
		}
		acc.WriteString(frag.Text)
		s.updateTurnLocked(placeholder, acc.String())
		s.mu.Unlock()
		s.deps.Recorder.AssistantFragment()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.deps.Recorder.AssistantExchange(outcomeStale)
		return
	}
	s.cancel = nil
	s.setStateLocked(StateIdle)
	s.deps.Recorder.AssistantExchange(outcomeCompleted)
}

// drain empties a stream whose results are no longer wanted.
func (s *Session) drain(stream <-chan Fragment) {
	for range stream {
		s.deps.Recorder.AssistantStale()
	}
}

func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.deps.Recorder.AssistantStale()
		s.deps.Recorder.AssistantExchange(outcomeStale)
		return
	}
	s.loggerFor(s.actor).Error().Err(err).Uint64("generation", gen).Msg("assistant exchange failed")
	s.cancel = nil
	s.appendTurnLocked(RoleAssistant, FallbackText)
	s.setStateLocked(StateIdle)
	s.deps.Recorder.AssistantExchange(outcomeFailed)
}

// Dictate transcribes audio into the input field. It returns the one-time
// notice when recognition is unavailable, and an empty string otherwise.
// Recognition failures leave the input unchanged.
func (s *Session) Dictate(ctx context.Context, audio []byte) (string, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.dictation == DictationListening {
		s.mu.Unlock()
		return "", ErrBusy
	}
	gen := s.generation
	s.setDictationLocked(DictationListening)
	s.mu.Unlock()

	text, err := s.deps.Transcriber.Transcribe(ctx, audio)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.deps.Recorder.AssistantStale()
		return "", nil
	}

	var notice string
	switch {
	case err == nil:
		s.input = text
		s.deps.Recorder.Dictation(outcomeCompleted)
	case errors.Is(err, speech.ErrUnavailable):
		s.deps.Recorder.Dictation(outcomeUnavailable)
		if !s.noticeShown {
			s.noticeShown = true
			notice = SpeechUnavailableNotice
			s.emitLocked(Event{Type: EventNotice, Notice: notice})
		}
	default:
		s.loggerFor(s.actor).Warn().Err(err).Msg("dictation failed")
		s.deps.Recorder.Dictation(outcomeFailed)
	}
	s.setDictationLocked(DictationIdle)
	return notice, nil
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]ChatTurn, len(s.turns))
	copy(turns, s.turns)
	return View{
		State:      s.state,
		Turns:      turns,
		Input:      s.input,
		CanSend:    s.state == StateIdle && strings.TrimSpace(s.input) != "",
		Dictation:  s.dictation,
		Generation: s.generation,
	}
}

func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) createConversation(ctx context.Context, actor *access.Actor) (Conversation, error) {
	if s.deps.Provider == nil {
		return nil, errors.New("assistant provider not configured")
	}
	var tenantID string
	if actor != nil {
		tenantID = actor.TenantID
	}
	userCtx := UserContext(actor, tenant.DisplayName(ctx, s.deps.Tenants, tenantID))
	return s.deps.Provider.CreateSession(ctx, SystemInstruction, userCtx)
}

func (s *Session) abortLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) appendTurnLocked(role Role, text string) uint64 {
	s.nextID++
	turn := ChatTurn{ID: s.nextID, Role: role, Text: text}
	s.turns = append(s.turns, turn)
	s.emitLocked(Event{Type: EventTurnAppended, Turn: &turn})
	return turn.ID
}

func (s *Session) updateTurnLocked(id uint64, text string) {
	for i := range s.turns {
		if s.turns[i].ID == id {
			s.turns[i].Text = text
			turn := s.turns[i]
			s.emitLocked(Event{Type: EventTurnUpdated, Turn: &turn})
			return
		}
	}
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	s.emitLocked(Event{Type: EventStateChanged, State: st, Dictation: s.dictation})
}

func (s *Session) setDictationLocked(d DictationState) {
	s.dictation = d
	s.emitLocked(Event{Type: EventStateChanged, State: s.state, Dictation: d})
}

func (s *Session) emitLocked(ev Event) {
	if s.actor == nil {
		return
	}
	ev.Generation = s.generation
	s.deps.Listener.SessionEvent(s.actor.ID, ev)
}

func (s *Session) loggerFor(actor *access.Actor) *zerolog.Logger {
	l := s.deps.Logger
	if actor != nil {
		l = l.With().Str("actor_id", actor.ID).Str("tenant_id", actor.TenantID).Logger()
	}
	return &l
}
