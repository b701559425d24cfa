package assistant

import (
	"errors"

	"github.com/medinexus/hms/internal/domain/access"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrBusy          = errors.New("assistant is busy")
	ErrSessionClosed = errors.New("assistant session is closed")
)

const (
	FallbackText            = "Sorry, I encountered an error. Please try again."
	SpeechUnavailableNotice = "Speech recognition is not supported."
)

type State string

const (
	StateClosed           State = "closed"
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
	StateStreaming        State = "streaming"
)

type DictationState string

const (
	DictationIdle      DictationState = "idle"
	DictationListening DictationState = "listening"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one transcript entry. IDs increase monotonically per session.
type ChatTurn struct {
	ID   uint64 `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// View is a point-in-time copy of a session.
type View struct {
	State      State          `json:"state"`
	Turns      []ChatTurn     `json:"turns"`
	Input      string         `json:"input"`
	CanSend    bool           `json:"can_send"`
	Dictation  DictationState `json:"dictation"`
	Generation uint64         `json:"generation"`
}

// Greeting is the synthetic first assistant turn of every session.
func Greeting(actor *access.Actor) string {
	if actor == nil || actor.FirstName == "" {
		return "Hello! I am your HMS Assistant. How can I help you today?"
	}
	return "Hello " + actor.FirstName + "! I am your HMS Assistant. How can I help you today?"
}

// UserContext describes the actor to the model.
func UserContext(actor *access.Actor, tenantName string) string {
	if actor == nil {
		return "You are assisting a hospital staff member."
	}
	return "You are assisting " + actor.FirstName + " " + actor.LastName +
		", who is a " + string(actor.Role) + " at " + tenantName + "."
}
