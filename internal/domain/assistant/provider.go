package assistant

import "context"

// Provider creates conversations with a text-generation service.
type Provider interface {
	CreateSession(ctx context.Context, systemInstruction, userContext string) (Conversation, error)
}

// Conversation is an opaque handle holding one chat's history on the
// provider side.
type Conversation interface {
	// SendStream submits message and returns a channel of fragments. A
	// non-nil error means the request was rejected outright. The channel is
	// closed after the last fragment; a Fragment with Err set reports a
	// mid-stream failure and is always the last value sent.
	SendStream(ctx context.Context, message string) (<-chan Fragment, error)
}

type Fragment struct {
	Text string
	Err  error
}

// SystemInstruction is sent with every new conversation.
const SystemInstruction = `You are an intelligent Medical Assistant for the Hospital Management System (HMS).
Your role is to assist doctors, nurses, and administrators.
You can help with:
1. Summarizing patient notes (generic medical info, do not ask for PII).
2. Suggesting generic treatment protocols based on symptoms.
3. Explaining medical terms or drug interactions.
4. Drafting administrative emails.

IMPORTANT:
- Always include a disclaimer that you are an AI and not a replacement for professional medical judgment.
- Do not store or ask for specific Personal Identifiable Information (PII) if not necessary.
- Keep responses concise and professional.`
