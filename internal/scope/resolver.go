// Package scope decides whether an inbound event should be answered and, if
// so, which conversational context it belongs to.
//
// Rules by channel kind:
//   - direct message: always eligible; storage channel is the user id and
//     there is no thread, so DMs from before channel ids were stored unify
//     with current ones.
//   - group message: eligible only for plain message events whose text
//     mentions the bot; no thread. The app_mention copy Slack also sends for
//     the same message is ignored so a group message is answered once. An
//     app subscribed only to app_mention therefore never answers in groups;
//     see RequiredEvents.
//   - channel: eligible only for app_mention events. A top-level mention
//     becomes the root of a new thread.
package scope

import (
	"strings"

	"github.com/tbourn/duckbot/internal/domain"
)

// RequiredEvents are the Slack event subscriptions the resolver expects.
// Group conversations are answered from the message.groups and message.mpim
// deliveries, never from app_mention.
var RequiredEvents = []string{"app_mention", "message.im", "message.groups", "message.mpim"}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Eligible bool
	// Reason explains an ineligible event, for logs.
	Reason string
	Key    domain.ScopeKey
	Kind   domain.ChannelKind
	// Channel is the origin channel id replies are posted to.
	Channel string
	// Text is the message with the bot mention removed.
	Text string
}

// Threaded reports whether replies should carry a thread timestamp.
func (r Resolution) Threaded() bool { return r.Kind == domain.ChannelPublic && r.Key.Threaded() }

// Resolve classifies ev for tenant. botUserID is the tenant's own Slack user
// id; when empty, group messages are never eligible.
func Resolve(tenant, botUserID string, ev domain.InboundEvent) Resolution {
	kind := domain.ClassifyChannel(ev.Channel)
	r := Resolution{Kind: kind, Channel: ev.Channel}

	if ev.User == "" {
		r.Reason = "no author"
		return r
	}
	if ev.Kind != domain.EventMessage && ev.Kind != domain.EventAppMention {
		r.Reason = "event kind " + string(ev.Kind)
		return r
	}

	mention := ""
	if botUserID != "" {
		mention = "<@" + botUserID + ">"
	}

	switch kind {
	case domain.ChannelDirect:
		r.Key = domain.ScopeKey{Tenant: tenant, User: ev.User, Channel: ev.User}

	case domain.ChannelGroup:
		if ev.Kind != domain.EventMessage {
			r.Reason = "group mention handled via message event (subscribe to message.groups and message.mpim)"
			return r
		}
		if mention == "" || !strings.Contains(ev.Text, mention) {
			r.Reason = "bot not mentioned"
			return r
		}
		r.Key = domain.ScopeKey{Tenant: tenant, User: ev.User, Channel: ev.Channel}

	case domain.ChannelPublic:
		if ev.Kind != domain.EventAppMention {
			r.Reason = "channel message without mention"
			return r
		}
		thread := ev.ThreadTS
		if thread == "" {
			thread = ev.TS
		}
		if thread == "" {
			r.Reason = "no thread root"
			return r
		}
		r.Key = domain.ScopeKey{Tenant: tenant, User: ev.User, Channel: ev.Channel, Thread: thread}

	default:
		r.Reason = "unknown channel kind"
		return r
	}

	r.Text = StripMention(ev.Text, botUserID)
	if r.Text == "" {
		r.Reason = "empty text"
		return r
	}
	r.Eligible = true
	return r
}

// StripMention removes every "<@botUserID>" token and surrounding space.
func StripMention(text, botUserID string) string {
	if botUserID != "" {
		text = strings.ReplaceAll(text, "<@"+botUserID+">", "")
	}
	return strings.TrimSpace(text)
}
