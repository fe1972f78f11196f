// Package cli implements the syncctl maintenance commands: inspecting the
// outbox and dead-letter queues, reading sync cursors and purging old
// failures. It operates directly on the tenant databases; the sync driver
// does not need to be running.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/serenoapp/syncstore/internal/config"
	"github.com/serenoapp/syncstore/internal/logging"
	"github.com/serenoapp/syncstore/internal/models"
	"github.com/serenoapp/syncstore/internal/store"
)

type App struct {
	cfg *config.Config
	reg *store.Registry
	out io.Writer
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	return &App{
		cfg: cfg,
		reg: store.NewRegistry(cfg.DataDir, log),
		out: os.Stdout,
	}, nil
}

// Run dispatches the subcommand named by the first positional argument.
func (a *App) Run(ctx context.Context) error {
	defer a.reg.CloseAll()

	cmd, tenant := parseArgs(os.Args[1:])
	switch cmd {
	case "status":
		return a.Status(ctx, tenant)
	case "failed":
		return a.Failed(ctx, tenant)
	case "purge":
		return a.Purge(ctx, tenant)
	case "", "help":
		a.usage()
		return nil
	default:
		a.usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// parseArgs picks the subcommand and an optional tenant key out of the
// positional arguments. Flags are left for the config loader.
func parseArgs(args []string) (cmd, tenant string) {
	pos := make([]string, 0, 2)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 0 && args[i][0] == '-' {
			// Skip the flag's value when given separately.
			if i+1 < len(args) && !containsEq(args[i]) && (len(args[i+1]) == 0 || args[i+1][0] != '-') {
				i++
			}
			continue
		}
		pos = append(pos, args[i])
	}
	if len(pos) > 0 {
		cmd = pos[0]
	}
	if len(pos) > 1 {
		tenant = pos[1]
	}
	return cmd, tenant
}

func containsEq(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return true
		}
	}
	return false
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `Usage: syncctl <command> [tenant] [flags]

Commands:
  status    schema version, queue depths, sync cursors
  failed    list dead-lettered operations
  purge     drop dead-lettered operations older than the retention window

Flags:
  -d dir    data directory (default ./data)
  -t days   dead-letter retention used by purge
  -c file   JSON config file`)
}

// Status prints the tenant's schema version, per-entity outbox depth, the
// dead-letter count and the stored sync cursors.
func (a *App) Status(ctx context.Context, tenant string) error {
	st, err := a.reg.Handle(ctx, tenant)
	if err != nil {
		return err
	}

	version, err := store.SchemaVersion(ctx, st.DB())
	if err != nil {
		return err
	}
	depth, err := st.Outbox.Depth(ctx)
	if err != nil {
		return err
	}
	failed, err := st.DeadLetters.Count(ctx)
	if err != nil {
		return err
	}
	cursors, err := st.Cursors.All(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "tenant: %s\n", st.User())
	fmt.Fprintf(a.out, "schema version: %d\n", version)
	fmt.Fprintf(a.out, "dead-lettered ops: %d\n", failed)

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nENTITY\tPENDING\tCURSOR")
	for _, kind := range models.Kinds() {
		cur := cursors[kind]
		if cur == "" {
			cur = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", kind, depth[kind], cur)
	}
	return w.Flush()
}

// Failed lists dead-lettered ops, newest failures first.
func (a *App) Failed(ctx context.Context, tenant string) error {
	st, err := a.reg.Handle(ctx, tenant)
	if err != nil {
		return err
	}

	ops, err := st.DeadLetters.List(ctx, 100)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		fmt.Fprintln(a.out, "no dead-lettered operations")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENTITY\tROW\tTRIES\tFAILED AT\tERROR")
	for _, op := range ops {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			op.ID, op.Entity, op.LocalID, op.Tries,
			op.FailedAt.Format(time.RFC3339), op.LastError)
	}
	return w.Flush()
}

// Purge drops dead-lettered ops older than the configured retention.
func (a *App) Purge(ctx context.Context, tenant string) error {
	st, err := a.reg.Handle(ctx, tenant)
	if err != nil {
		return err
	}

	n, err := st.DeadLetters.PurgeOlderThan(ctx, a.cfg.DeadLetterTTL)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "purged %d dead-lettered operation(s)\n", n)
	return nil
}
