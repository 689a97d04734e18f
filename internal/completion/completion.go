// Package completion is the boundary to the text-generation service. The
// pipeline composes a Request from the tenant directive, prior turns, and the
// new message, and gets back reply text plus a best-effort token count.
package completion

import (
	"context"
	"errors"
	"time"
)

// Role names a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Exchange is one prior (message, reply) pair, oldest first in a Request.
type Exchange struct {
	Message string
	Reply   string
}

// Request is everything the generator needs for one reply.
type Request struct {
	Model     string
	Directive string
	History   []Exchange
	Message   string
}

// Result is a generated reply.
type Result struct {
	Text   string
	Tokens int
}

// ErrEmptyReply is returned when the service answers without content.
var ErrEmptyReply = errors.New("empty completion")

// Dispatcher produces a reply for a Request. Implementations must honor ctx
// cancellation and must not retry.
type Dispatcher interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// Messages flattens req into the chat transcript sent to the service:
// system directive, alternating user/assistant history, then the new
// message.
func Messages(req Request) []Message {
	out := make([]Message, 0, 2+2*len(req.History))
	out = append(out, Message{Role: RoleSystem, Content: req.Directive})
	for _, h := range req.History {
		out = append(out,
			Message{Role: RoleUser, Content: h.Message},
			Message{Role: RoleAssistant, Content: h.Reply},
		)
	}
	return append(out, Message{Role: RoleUser, Content: req.Message})
}

// Message is one transcript entry.
type Message struct {
	Role    Role
	Content string
}

// WithTimeout bounds every call of d by timeout.
func WithTimeout(d Dispatcher, timeout time.Duration) Dispatcher {
	if timeout <= 0 {
		return d
	}
	return timeoutDispatcher{next: d, timeout: timeout}
}

type timeoutDispatcher struct {
	next    Dispatcher
	timeout time.Duration
}

func (t timeoutDispatcher) Complete(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}
