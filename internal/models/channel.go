package models

import (
	"fmt"

	"github.com/serenoapp/syncstore/internal/common"
)

// Channel is a logical chat partition. Each channel keeps its own message and
// session tables so conversations never bleed across surfaces (the vent
// channel in particular is designed to be wiped independently).
type Channel string

const (
	ChannelCoach     Channel = "coach"
	ChannelCompanion Channel = "companion"
	ChannelVent      Channel = "vent"
)

type channelTables struct {
	messages    string
	sessions    string
	messageKind Kind
	sessionKind Kind
}

// Resolved once at init; never rebuilt from strings per call.
var chanTables = map[Channel]channelTables{
	ChannelCoach: {
		messages:    "chat_messages_coach",
		sessions:    "chat_sessions_coach",
		messageKind: KindChatMessageCoach,
		sessionKind: KindChatSessionCoach,
	},
	ChannelCompanion: {
		messages:    "chat_messages_companion",
		sessions:    "chat_sessions_companion",
		messageKind: KindChatMessageCompanion,
		sessionKind: KindChatSessionCompanion,
	},
	ChannelVent: {
		messages:    "chat_messages_vent",
		sessions:    "chat_sessions_vent",
		messageKind: KindChatMessageVent,
		sessionKind: KindChatSessionVent,
	},
}

// Channels returns every chat channel, in a stable order.
func Channels() []Channel {
	return []Channel{ChannelCoach, ChannelCompanion, ChannelVent}
}

// Valid reports whether the channel is known.
func (c Channel) Valid() bool {
	_, ok := chanTables[c]
	return ok
}

// MessageTable returns the messages table for the channel.
func (c Channel) MessageTable() (string, error) {
	t, ok := chanTables[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownChannel, string(c))
	}
	return t.messages, nil
}

// SessionTable returns the sessions table for the channel.
func (c Channel) SessionTable() (string, error) {
	t, ok := chanTables[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownChannel, string(c))
	}
	return t.sessions, nil
}

// MessageKind returns the outbox/reconcile kind for the channel's messages.
func (c Channel) MessageKind() Kind { return chanTables[c].messageKind }

// SessionKind returns the outbox/reconcile kind for the channel's sessions.
func (c Channel) SessionKind() Kind { return chanTables[c].sessionKind }
