// Package chat stores chat sessions and messages. Every channel (coach,
// companion, vent) has its own table pair, selected through the channel
// enum's dispatch table — never from a runtime string.
package chat

import (
	"context"

	"github.com/serenoapp/syncstore/internal/models"
)

type Repository interface {
	// AppendMessage writes the message, bumps its session's activity
	// timestamp and message count, and enqueues the message's outbox op —
	// all in one transaction. One logical mutation, one notification.
	AppendMessage(ctx context.Context, ch models.Channel, m *models.ChatMessage) (string, error)

	// UpsertSession writes a session header and enqueues its outbox op.
	UpsertSession(ctx context.Context, ch models.Channel, s *models.ChatSession) (string, error)

	// Messages returns a session's messages, oldest first.
	Messages(ctx context.Context, ch models.Channel, sessionID string) ([]models.ChatMessage, error)

	// Sessions returns the channel's sessions, most recently active first.
	Sessions(ctx context.Context, ch models.Channel) ([]models.ChatSession, error)

	// Session returns one session header by local id.
	Session(ctx context.Context, ch models.Channel, localID string) (*models.ChatSession, error)

	// ImportMessages / ImportSessions upsert server-confirmed rows keyed by
	// server id. Idempotent; no outbox ops.
	ImportMessages(ctx context.Context, ch models.Channel, rows []models.ChatMessage) error
	ImportSessions(ctx context.Context, ch models.Channel, rows []models.ChatSession) error

	// DeleteSession hard-deletes a session, its messages, and any outbox
	// ops referencing them.
	DeleteSession(ctx context.Context, ch models.Channel, sessionID string) error

	// ClearChannel wipes every session and message in the channel. Exists
	// for the ephemeral vent surface but works on any channel.
	ClearChannel(ctx context.Context, ch models.Channel) error
}
