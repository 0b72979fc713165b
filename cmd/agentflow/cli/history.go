package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/agentflow/session"
)

var errNoRecorder = errors.New("no history recorder configured; set REDIS_URL or MONGODB_URI")

// historyLoader reads a recorded session back.
type historyLoader interface {
	Load(ctx context.Context, sessionID string) ([]session.Message, error)
}

func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print the recorded history of a session",
		Long: `Read a session's conversation back from the configured recorders (Redis
first, then MongoDB). Sessions closed on the server are deleted from the
recorders and report no history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args[0])
		},
	}
	return cmd
}

func runHistory(cmd *cobra.Command, sessionID string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
	defer cancel()

	d := &dependencies{}
	defer d.Close()
	if err := d.openRecorders(ctx, cfg); err != nil {
		return err
	}

	var loaders []historyLoader
	for _, r := range d.recorders {
		if l, ok := r.(historyLoader); ok {
			loaders = append(loaders, l)
		}
	}

	msgs, err := loadHistory(ctx, loaders, sessionID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintf(out, "no recorded history for %s\n", sessionID)
		return nil
	}
	printHistory(out, msgs)
	return nil
}

// loadHistory returns the first non-empty history. A failing loader is
// skipped; its error is returned only when no other loader has the session.
func loadHistory(ctx context.Context, loaders []historyLoader, sessionID string) ([]session.Message, error) {
	if len(loaders) == 0 {
		return nil, errNoRecorder
	}
	var firstErr error
	for _, l := range loaders {
		msgs, err := l.Load(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to load recorded history")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(msgs) > 0 {
			return msgs, nil
		}
	}
	return nil, firstErr
}

func printHistory(w io.Writer, msgs []session.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
	}
}
