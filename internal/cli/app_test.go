package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenoapp/syncstore/internal/config"
	"github.com/serenoapp/syncstore/internal/logging"
	"github.com/serenoapp/syncstore/internal/models"
	"github.com/serenoapp/syncstore/internal/store"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()

	a := &App{
		cfg: cfg,
		reg: store.NewRegistry(cfg.DataDir, logging.NopLogger{}),
		out: &bytes.Buffer{},
	}
	t.Cleanup(func() { a.reg.CloseAll() })
	return a, a.out.(*bytes.Buffer)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCmd    string
		wantTenant string
	}{
		{name: "command only", args: []string{"status"}, wantCmd: "status"},
		{name: "command and tenant", args: []string{"failed", "alice"}, wantCmd: "failed", wantTenant: "alice"},
		{name: "flags before command", args: []string{"-d", "/data", "status"}, wantCmd: "status"},
		{name: "equals-form flag", args: []string{"--config=x.json", "purge", "bob"}, wantCmd: "purge", wantTenant: "bob"},
		{name: "empty", args: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, tenant := parseArgs(tt.args)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantTenant, tenant)
		})
	}
}

func TestStatusReportsQueuesAndCursors(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	st, err := a.reg.Handle(ctx, "alice")
	require.NoError(t, err)
	_, err = st.Moods.UpsertLocal(ctx, &models.MoodEntry{
		UserID: "alice", Mood: "calm", OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, st.Cursors.Set(ctx, models.KindMoodEntry, "c41"))

	require.NoError(t, a.Status(ctx, "alice"))

	s := out.String()
	assert.Contains(t, s, "tenant: alice")
	assert.Contains(t, s, "schema version: 3")
	assert.Contains(t, s, "c41")
	assert.Contains(t, s, "mood_entry")
}

func TestFailedReportsEmptyQueue(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	require.NoError(t, a.Failed(ctx, ""))
	assert.Contains(t, out.String(), "no dead-lettered operations")
}

func TestPurgeReportsCount(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	require.NoError(t, a.Purge(ctx, ""))
	assert.Contains(t, out.String(), "purged 0")
}
