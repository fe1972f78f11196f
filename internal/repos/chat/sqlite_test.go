package chat

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/logging"
	"github.com/serenoapp/syncstore/internal/models"
	"github.com/serenoapp/syncstore/internal/notify"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, ch := range []string{"coach", "companion", "vent"} {
		_, err = db.Exec(fmt.Sprintf(`
CREATE TABLE chat_sessions_%[1]s (
  local_id         TEXT PRIMARY KEY,
  server_id        TEXT,
  user_id          TEXT NOT NULL,
  deleted          INTEGER NOT NULL DEFAULT 0,
  title            TEXT NOT NULL DEFAULT '',
  started_at       TIMESTAMP NOT NULL,
  last_activity_at TIMESTAMP NOT NULL,
  message_count    INTEGER NOT NULL DEFAULT 0,
  updated_at       TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX idx_chat_sessions_%[1]s_server_id
  ON chat_sessions_%[1]s(server_id) WHERE server_id IS NOT NULL;
CREATE TABLE chat_messages_%[1]s (
  local_id   TEXT PRIMARY KEY,
  server_id  TEXT,
  user_id    TEXT NOT NULL,
  deleted    INTEGER NOT NULL DEFAULT 0,
  session_id TEXT NOT NULL,
  role       TEXT NOT NULL,
  content    TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX idx_chat_messages_%[1]s_server_id
  ON chat_messages_%[1]s(server_id) WHERE server_id IS NOT NULL;
`, ch))
		require.NoError(t, err)
	}

	_, err = db.Exec(`
CREATE TABLE outbox_ops (
  id        TEXT PRIMARY KEY,
  entity    TEXT NOT NULL,
  op_kind   TEXT NOT NULL,
  local_id  TEXT NOT NULL,
  payload   TEXT NOT NULL,
  queued_at TIMESTAMP NOT NULL,
  tries     INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func newRepo(t *testing.T, db *sql.DB) (*SQLiteRepository, *int) {
	t.Helper()
	bus := notify.New(logging.NopLogger{})
	notified := 0
	bus.Subscribe(func() { notified++ })
	return NewSQLiteRepository(db, "u1", bus), &notified
}

func startSession(t *testing.T, r *SQLiteRepository, ch models.Channel) string {
	t.Helper()
	id, err := r.UpsertSession(context.Background(), ch, &models.ChatSession{
		Title:     "first chat",
		StartedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func outboxCount(t *testing.T, db *sql.DB, entity models.Kind) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM outbox_ops WHERE entity = ?`, string(entity)).Scan(&n))
	return n
}

func TestAppendMessage_BumpsSessionInSameTransaction(t *testing.T) {
	db := setupDB(t)
	r, notified := newRepo(t, db)
	ctx := context.Background()

	sessionID := startSession(t, r, models.ChannelCoach)
	*notified = 0

	msgID, err := r.AppendMessage(ctx, models.ChannelCoach, &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   "I had a rough day",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msgID)
	assert.Equal(t, 1, *notified)

	s, err := r.Session(ctx, models.ChannelCoach, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.MessageCount)
	assert.False(t, s.LastActivityAt.IsZero())

	// The message op rides the queue; the session bump does not get its own.
	assert.Equal(t, 1, outboxCount(t, db, models.ChannelCoach.MessageKind()))
	assert.Equal(t, 1, outboxCount(t, db, models.ChannelCoach.SessionKind()))
}

func TestAppendMessage_UnknownSession(t *testing.T) {
	db := setupDB(t)
	r, _ := newRepo(t, db)

	_, err := r.AppendMessage(context.Background(), models.ChannelCoach, &models.ChatMessage{
		SessionID: "missing",
		Role:      models.RoleUser,
		Content:   "hello",
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestChannelsAreIndependent(t *testing.T) {
	db := setupDB(t)
	r, _ := newRepo(t, db)
	ctx := context.Background()

	coachID := startSession(t, r, models.ChannelCoach)
	ventID := startSession(t, r, models.ChannelVent)

	_, err := r.AppendMessage(ctx, models.ChannelCoach, &models.ChatMessage{
		SessionID: coachID, Role: models.RoleUser, Content: "coach only",
	})
	require.NoError(t, err)

	ventMsgs, err := r.Messages(ctx, models.ChannelVent, ventID)
	require.NoError(t, err)
	assert.Empty(t, ventMsgs)

	ventSessions, err := r.Sessions(ctx, models.ChannelVent)
	require.NoError(t, err)
	require.Len(t, ventSessions, 1)
	assert.Equal(t, ventID, ventSessions[0].LocalID)
}

func TestDeleteSession_RemovesMessagesAndOps(t *testing.T) {
	db := setupDB(t)
	r, _ := newRepo(t, db)
	ctx := context.Background()

	sessionID := startSession(t, r, models.ChannelCompanion)
	for i := 0; i < 3; i++ {
		_, err := r.AppendMessage(ctx, models.ChannelCompanion, &models.ChatMessage{
			SessionID: sessionID, Role: models.RoleUser, Content: "hi",
		})
		require.NoError(t, err)
	}

	require.NoError(t, r.DeleteSession(ctx, models.ChannelCompanion, sessionID))

	_, err := r.Session(ctx, models.ChannelCompanion, sessionID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	msgs, err := r.Messages(ctx, models.ChannelCompanion, sessionID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.Equal(t, 0, outboxCount(t, db, models.ChannelCompanion.MessageKind()))
	assert.Equal(t, 0, outboxCount(t, db, models.ChannelCompanion.SessionKind()))
}

func TestClearChannel_WipesOnlyThatChannel(t *testing.T) {
	db := setupDB(t)
	r, _ := newRepo(t, db)
	ctx := context.Background()

	ventID := startSession(t, r, models.ChannelVent)
	_, err := r.AppendMessage(ctx, models.ChannelVent, &models.ChatMessage{
		SessionID: ventID, Role: models.RoleUser, Content: "venting",
	})
	require.NoError(t, err)
	coachID := startSession(t, r, models.ChannelCoach)

	require.NoError(t, r.ClearChannel(ctx, models.ChannelVent))

	ventSessions, err := r.Sessions(ctx, models.ChannelVent)
	require.NoError(t, err)
	assert.Empty(t, ventSessions)
	assert.Equal(t, 0, outboxCount(t, db, models.ChannelVent.MessageKind()))
	assert.Equal(t, 0, outboxCount(t, db, models.ChannelVent.SessionKind()))

	// The coach channel is untouched.
	s, err := r.Session(ctx, models.ChannelCoach, coachID)
	require.NoError(t, err)
	assert.Equal(t, coachID, s.LocalID)
}

func TestImportMessages_Idempotent(t *testing.T) {
	db := setupDB(t)
	r, notified := newRepo(t, db)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := []models.ChatMessage{{
		ServerID: "srv_m1", SessionID: "s1", Role: models.RoleAssistant,
		Content: "take a deep breath", CreatedAt: now, UpdatedAt: now,
	}}
	require.NoError(t, r.ImportMessages(ctx, models.ChannelCoach, rows))
	require.NoError(t, r.ImportMessages(ctx, models.ChannelCoach, rows))

	msgs, err := r.Messages(ctx, models.ChannelCoach, "s1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, 0, *notified)
}
