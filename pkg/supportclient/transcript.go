package supportclient

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrTurnInFlight is returned when a message is sent before the previous one settled.
	ErrTurnInFlight = errors.New("supportclient: a message is already awaiting its reply")
	ErrSettled      = errors.New("supportclient: pending message already committed or rolled back")
	ErrEmptyMessage = errors.New("supportclient: message is empty")
)

const tentativeID = "pending"

// Transcript is the locally displayed copy of one conversation.
type Transcript struct {
	mu             sync.Mutex
	conversationID string
	messages       []Message
	pending        *Pending
}

// NewTranscript starts an empty transcript; pass an id to continue an existing conversation.
func NewTranscript(conversationID string) *Transcript {
	return &Transcript{conversationID: conversationID}
}

// TranscriptFrom seeds a transcript with a conversation fetched from the API.
func TranscriptFrom(conv *Conversation) *Transcript {
	t := &Transcript{conversationID: conv.ID}
	t.messages = append(t.messages, conv.Messages...)
	return t
}

func (t *Transcript) ConversationID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversationID
}

// Messages returns a copy, including the tentative message if one is pending.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// TentativeAppend shows the user message before the server confirmed it.
func (t *Transcript) TentativeAppend(content string) (*Pending, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		return nil, ErrTurnInFlight
	}

	msg := Message{ID: tentativeID, Role: "user", Content: content, Timestamp: time.Now().UTC()}
	t.messages = append(t.messages, msg)
	t.pending = &Pending{transcript: t, index: len(t.messages) - 1, message: msg}
	return t.pending, nil
}

// Pending is one tentative user message. Exactly one of Commit or Rollback takes effect.
type Pending struct {
	transcript *Transcript
	index      int
	message    Message
	settled    bool
}

func (p *Pending) Message() Message {
	return p.message
}

// Commit keeps the user message and appends the assistant reply.
func (p *Pending) Commit(reply *Reply) error {
	t := p.transcript
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.settled {
		return ErrSettled
	}
	p.settled = true
	t.pending = nil

	if t.conversationID == "" {
		t.conversationID = reply.ConversationID
	}
	t.messages[p.index].ID = ""
	t.messages = append(t.messages, reply.Message)
	return nil
}

// Rollback removes the tentative message. Calling it after Commit does nothing.
func (p *Pending) Rollback() {
	t := p.transcript
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.settled {
		return
	}
	p.settled = true
	t.pending = nil
	t.messages = append(t.messages[:p.index], t.messages[p.index+1:]...)
}
