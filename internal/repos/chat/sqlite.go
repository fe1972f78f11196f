package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/serenoapp/syncstore/internal/common"
	"github.com/serenoapp/syncstore/internal/dbx"
	"github.com/serenoapp/syncstore/internal/models"
	"github.com/serenoapp/syncstore/internal/notify"
	"github.com/serenoapp/syncstore/internal/repos/outbox"
)

type SQLiteRepository struct {
	db   *sql.DB
	user string
	bus  *notify.Bus
}

func NewSQLiteRepository(db *sql.DB, user string, bus *notify.Bus) *SQLiteRepository {
	return &SQLiteRepository{db: db, user: user, bus: bus}
}

func (r *SQLiteRepository) AppendMessage(ctx context.Context, ch models.Channel, m *models.ChatMessage) (string, error) {
	msgTable, err := ch.MessageTable()
	if err != nil {
		return "", err
	}
	sessTable, _ := ch.SessionTable()
	if m.SessionID == "" {
		return "", common.ErrMissingSessionID
	}

	if m.LocalID == "" {
		m.LocalID = uuid.NewString()
	}
	m.UserID = r.user
	if m.Role == "" {
		m.Role = models.RoleUser
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat payload: %w", err)
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE `+sessTable+`
			SET last_activity_at = ?, message_count = message_count + 1, updated_at = ?
			WHERE local_id = ?
		`, m.CreatedAt, m.UpdatedAt, m.SessionID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("session %s: %w", m.SessionID, common.ErrNotFound)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO `+msgTable+` (local_id, server_id, user_id, deleted, session_id, role, content, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(local_id) DO UPDATE SET
				deleted = excluded.deleted,
				content = excluded.content,
				updated_at = excluded.updated_at
		`, m.LocalID, nullStr(m.ServerID), m.UserID, boolInt(m.Deleted), m.SessionID,
			string(m.Role), m.Content, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return err
		}

		return outbox.EnqueueTx(ctx, tx, &models.OutboxOp{
			Entity:  ch.MessageKind(),
			LocalID: m.LocalID,
			Payload: payload,
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to append chat message: %w", err)
	}

	r.bus.Notify()
	return m.LocalID, nil
}

func (r *SQLiteRepository) UpsertSession(ctx context.Context, ch models.Channel, s *models.ChatSession) (string, error) {
	sessTable, err := ch.SessionTable()
	if err != nil {
		return "", err
	}

	if s.LocalID == "" {
		s.LocalID = uuid.NewString()
	}
	s.UserID = r.user
	s.Channel = ch
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if s.LastActivityAt.IsZero() {
		s.LastActivityAt = s.StartedAt
	}
	s.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode session payload: %w", err)
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO `+sessTable+` (local_id, server_id, user_id, deleted, title, started_at, last_activity_at, message_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(local_id) DO UPDATE SET
				deleted = excluded.deleted,
				title = excluded.title,
				last_activity_at = excluded.last_activity_at,
				updated_at = excluded.updated_at
		`, s.LocalID, nullStr(s.ServerID), s.UserID, boolInt(s.Deleted), s.Title,
			s.StartedAt, s.LastActivityAt, s.MessageCount, s.UpdatedAt)
		if err != nil {
			return err
		}
		return outbox.EnqueueTx(ctx, tx, &models.OutboxOp{
			Entity:  ch.SessionKind(),
			LocalID: s.LocalID,
			Payload: payload,
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert chat session: %w", err)
	}

	r.bus.Notify()
	return s.LocalID, nil
}

func (r *SQLiteRepository) Messages(ctx context.Context, ch models.Channel, sessionID string) ([]models.ChatMessage, error) {
	msgTable, err := ch.MessageTable()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT local_id, server_id, user_id, deleted, session_id, role, content, created_at, updated_at
		FROM `+msgTable+`
		WHERE session_id = ? AND deleted = 0
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var result []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var serverID sql.NullString
		var deleted int
		var role string
		if err := rows.Scan(&m.LocalID, &serverID, &m.UserID, &deleted, &m.SessionID,
			&role, &m.Content, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.ServerID = serverID.String
		m.Deleted = deleted == 1
		m.Role = models.Role(role)
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Sessions(ctx context.Context, ch models.Channel) ([]models.ChatSession, error) {
	sessTable, err := ch.SessionTable()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sessionCols+` FROM `+sessTable+`
		WHERE user_id = ? AND deleted = 0
		ORDER BY last_activity_at DESC
	`, r.user)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var result []models.ChatSession
	for rows.Next() {
		s, err := scanSession(rows, ch)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Session(ctx context.Context, ch models.Channel, localID string) (*models.ChatSession, error) {
	sessTable, err := ch.SessionTable()
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, sessionCols+` FROM `+sessTable+` WHERE local_id = ?`, localID)
	s, err := scanSession(row, ch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) ImportMessages(ctx context.Context, ch models.Channel, rows []models.ChatMessage) error {
	msgTable, err := ch.MessageTable()
	if err != nil {
		return err
	}
	for i := range rows {
		m := rows[i]
		if m.ServerID == "" {
			return common.ErrMissingServerID
		}
		if m.LocalID == "" {
			m.LocalID = uuid.NewString()
		}
		if m.UserID == "" {
			m.UserID = r.user
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO `+msgTable+` (local_id, server_id, user_id, deleted, session_id, role, content, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) WHERE server_id IS NOT NULL DO UPDATE SET
				deleted = excluded.deleted,
				content = excluded.content,
				updated_at = excluded.updated_at
		`, m.LocalID, m.ServerID, m.UserID, boolInt(m.Deleted), m.SessionID,
			string(m.Role), m.Content, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to import chat message %s: %w", m.ServerID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) ImportSessions(ctx context.Context, ch models.Channel, rows []models.ChatSession) error {
	sessTable, err := ch.SessionTable()
	if err != nil {
		return err
	}
	for i := range rows {
		s := rows[i]
		if s.ServerID == "" {
			return common.ErrMissingServerID
		}
		if s.LocalID == "" {
			s.LocalID = uuid.NewString()
		}
		if s.UserID == "" {
			s.UserID = r.user
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO `+sessTable+` (local_id, server_id, user_id, deleted, title, started_at, last_activity_at, message_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) WHERE server_id IS NOT NULL DO UPDATE SET
				deleted = excluded.deleted,
				title = excluded.title,
				last_activity_at = excluded.last_activity_at,
				message_count = excluded.message_count,
				updated_at = excluded.updated_at
		`, s.LocalID, s.ServerID, s.UserID, boolInt(s.Deleted), s.Title,
			s.StartedAt, s.LastActivityAt, s.MessageCount, s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to import chat session %s: %w", s.ServerID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, ch models.Channel, sessionID string) error {
	msgTable, err := ch.MessageTable()
	if err != nil {
		return err
	}
	sessTable, _ := ch.SessionTable()

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM outbox_ops WHERE entity = ? AND local_id IN
				(SELECT local_id FROM `+msgTable+` WHERE session_id = ?)
		`, string(ch.MessageKind()), sessionID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+msgTable+` WHERE session_id = ?`, sessionID); err != nil {
			return err
		}
		if err := outbox.DeleteForRowTx(ctx, tx, ch.SessionKind(), sessionID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM `+sessTable+` WHERE local_id = ?`, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete chat session: %w", err)
	}

	r.bus.Notify()
	return nil
}

func (r *SQLiteRepository) ClearChannel(ctx context.Context, ch models.Channel) error {
	msgTable, err := ch.MessageTable()
	if err != nil {
		return err
	}
	sessTable, _ := ch.SessionTable()

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM outbox_ops WHERE entity IN (?, ?)`,
			string(ch.MessageKind()), string(ch.SessionKind()))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+msgTable); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM `+sessTable)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear channel %s: %w", ch, err)
	}

	r.bus.Notify()
	return nil
}

const sessionCols = `
	SELECT local_id, server_id, user_id, deleted, title, started_at, last_activity_at, message_count, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, ch models.Channel) (*models.ChatSession, error) {
	var s models.ChatSession
	var serverID sql.NullString
	var deleted int
	if err := row.Scan(&s.LocalID, &serverID, &s.UserID, &deleted, &s.Title,
		&s.StartedAt, &s.LastActivityAt, &s.MessageCount, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ServerID = serverID.String
	s.Deleted = deleted == 1
	s.Channel = ch
	return &s, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
