// Package models defines the entities persisted by the local store, the
// entity-kind and chat-channel enums used for table dispatch, and the typed
// serialization boundary for JSON-encoded columns.
package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ExerciseCategory classifies a catalog exercise.
type ExerciseCategory string

const (
	CategoryBreathing   ExerciseCategory = "breathing"
	CategoryMindfulness ExerciseCategory = "mindfulness"
	CategoryMovement    ExerciseCategory = "movement"
	CategoryJournaling  ExerciseCategory = "journaling"
)

// ExerciseDifficulty grades a catalog exercise.
type ExerciseDifficulty string

const (
	DifficultyBeginner     ExerciseDifficulty = "beginner"
	DifficultyIntermediate ExerciseDifficulty = "intermediate"
	DifficultyAdvanced     ExerciseDifficulty = "advanced"
)

// MoodEntry is a single mood check-in.
//
// ServerID is empty until the remote service acknowledges the row; a row with
// an empty ServerID is a purely local, not-yet-acknowledged creation.
type MoodEntry struct {
	LocalID  string `json:"localId"`
	ServerID string `json:"serverId,omitempty"`
	UserID   string `json:"userId"`
	Deleted  bool   `json:"deleted,omitempty"`

	Mood       string    `json:"mood"`
	Rating     *int      `json:"rating,omitempty"` // 1..10, optional
	Note       string    `json:"note,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	TimeOfDay  string    `json:"timeOfDay,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// ExerciseCatalogItem is a guided exercise. Titles, descriptions and steps
// carry en/es variants.
type ExerciseCatalogItem struct {
	LocalID  string `json:"localId"`
	ServerID string `json:"serverId,omitempty"`
	UserID   string `json:"userId"`
	Deleted  bool   `json:"deleted,omitempty"`

	TitleEN       string             `json:"titleEn"`
	TitleES       string             `json:"titleEs"`
	DescriptionEN string             `json:"descriptionEn,omitempty"`
	DescriptionES string             `json:"descriptionEs,omitempty"`
	Category      ExerciseCategory   `json:"category"`
	Difficulty    ExerciseDifficulty `json:"difficulty"`
	// DurationMinutes is the catalog's advertised length, not a measured one.
	DurationMinutes int      `json:"durationMinutes"`
	StepsEN         []string `json:"stepsEn,omitempty"`
	StepsES         []string `json:"stepsEs,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// ProgressLog records one completed exercise.
//
// DurationSeconds is the normalized storage unit; the repository API accepts
// and returns minutes.
type ProgressLog struct {
	LocalID  string `json:"localId"`
	ServerID string `json:"serverId,omitempty"`
	UserID   string `json:"userId"`
	Deleted  bool   `json:"deleted,omitempty"`

	ExerciseID      string    `json:"exerciseId"`
	DurationSeconds int       `json:"durationSeconds"`
	Feedback        string    `json:"feedback,omitempty"`
	CompletedAt     time.Time `json:"completedAt"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is one message within a session of a chat channel.
type ChatMessage struct {
	LocalID  string `json:"localId"`
	ServerID string `json:"serverId,omitempty"`
	UserID   string `json:"userId"`
	Deleted  bool   `json:"deleted,omitempty"`

	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatSession is the header row for a conversation.
type ChatSession struct {
	LocalID  string `json:"localId"`
	ServerID string `json:"serverId,omitempty"`
	UserID   string `json:"userId"`
	Deleted  bool   `json:"deleted,omitempty"`

	Channel        Channel   `json:"channel"`
	Title          string    `json:"title,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	MessageCount   int       `json:"messageCount"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// OpKind is the kind of a queued mutation. Upsert is currently the only kind;
// deletes are not propagated upstream (tombstone sync is a future extension).
type OpKind string

const OpUpsert OpKind = "upsert"

// OutboxOp is a queued local mutation awaiting remote acknowledgement.
type OutboxOp struct {
	ID       string          `json:"id"`
	Entity   Kind            `json:"entity"`
	OpKind   OpKind          `json:"opKind"`
	LocalID  string          `json:"localId"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queuedAt"`
	Tries    int             `json:"tries"`
}

// FailedOp is an OutboxOp that exhausted its retry budget. Terminal: nothing
// in the engine retries it.
type FailedOp struct {
	OutboxOp
	LastError string    `json:"lastError"`
	FailedAt  time.Time `json:"failedAt"`
}
