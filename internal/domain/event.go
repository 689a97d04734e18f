package domain

import "strings"

// Tenant is one configured bot identity. Tenants are loaded once at startup
// and never mutated.
type Tenant struct {
	ID            string // "duck", "goose"
	SigningSecret string
	BotToken      string
	Prefix        string // e.g. "[Duck]"
	Directive     string // system prompt template
	Model         string
}

// EventKind is the inner Slack event type.
type EventKind string

const (
	EventMessage         EventKind = "message"
	EventAppMention      EventKind = "app_mention"
	EventURLVerification EventKind = "url_verification"
	EventOther           EventKind = "other"
)

// ParseEventKind maps the raw "type" field onto a known kind.
func ParseEventKind(s string) EventKind {
	switch EventKind(s) {
	case EventMessage, EventAppMention, EventURLVerification:
		return EventKind(s)
	}
	return EventOther
}

// ChannelKind classifies where a message was posted.
type ChannelKind int

const (
	ChannelUnknown ChannelKind = iota
	ChannelDirect
	ChannelGroup
	ChannelPublic
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelDirect:
		return "direct"
	case ChannelGroup:
		return "group"
	case ChannelPublic:
		return "channel"
	}
	return "unknown"
}

// ClassifyChannel derives the channel kind from Slack's id prefix
// convention: D = direct message, G = group/multi-person DM, C = channel.
func ClassifyChannel(channelID string) ChannelKind {
	switch {
	case strings.HasPrefix(channelID, "D"):
		return ChannelDirect
	case strings.HasPrefix(channelID, "G"):
		return ChannelGroup
	case strings.HasPrefix(channelID, "C"):
		return ChannelPublic
	}
	return ChannelUnknown
}

// InboundEvent is one webhook delivery, alive for a single request.
type InboundEvent struct {
	Kind     EventKind
	ID       string // client_msg_id when present, else ts
	User     string
	Channel  string
	Text     string
	ThreadTS string
	TS       string
	BotID    string
}

// ScopeKey identifies one conversational context. Channel is the storage
// channel: the user id for direct messages, the raw channel id otherwise.
// Thread is set only for channel threads.
type ScopeKey struct {
	Tenant  string
	User    string
	Channel string
	Thread  string
}

// Threaded reports whether the scope is a channel thread.
func (k ScopeKey) Threaded() bool { return k.Thread != "" }

// String renders the key for logs and lock maps.
func (k ScopeKey) String() string {
	return k.Tenant + "|" + k.User + "|" + k.Channel + "|" + k.Thread
}
