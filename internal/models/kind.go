package models

import (
	"fmt"

	"github.com/serenoapp/syncstore/internal/common"
)

// Kind identifies an entity table for outbox ops, reconciliation and sync
// cursors. Every kind maps to exactly one physical table; the mapping is a
// fixed dispatch table, never derived from request strings.
type Kind string

const (
	KindMoodEntry   Kind = "mood_entry"
	KindExercise    Kind = "exercise"
	KindProgressLog Kind = "progress_log"

	KindChatMessageCoach     Kind = "chat_message_coach"
	KindChatMessageCompanion Kind = "chat_message_companion"
	KindChatMessageVent      Kind = "chat_message_vent"

	KindChatSessionCoach     Kind = "chat_session_coach"
	KindChatSessionCompanion Kind = "chat_session_companion"
	KindChatSessionVent      Kind = "chat_session_vent"
)

var kindTables = map[Kind]string{
	KindMoodEntry:   "mood_entries",
	KindExercise:    "exercise_catalog",
	KindProgressLog: "progress_logs",

	KindChatMessageCoach:     "chat_messages_coach",
	KindChatMessageCompanion: "chat_messages_companion",
	KindChatMessageVent:      "chat_messages_vent",

	KindChatSessionCoach:     "chat_sessions_coach",
	KindChatSessionCompanion: "chat_sessions_companion",
	KindChatSessionVent:      "chat_sessions_vent",
}

// Kinds returns every known kind, in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindMoodEntry,
		KindExercise,
		KindProgressLog,
		KindChatMessageCoach,
		KindChatMessageCompanion,
		KindChatMessageVent,
		KindChatSessionCoach,
		KindChatSessionCompanion,
		KindChatSessionVent,
	}
}

// Table returns the physical table name for the kind. The name comes from the
// fixed dispatch map above, so it is safe to interpolate into SQL.
func (k Kind) Table() (string, error) {
	t, ok := kindTables[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownEntity, string(k))
	}
	return t, nil
}

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}
