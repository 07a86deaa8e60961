package cli

// ============================================================================
// Inspection commands
// Purpose: status / log / verify, read-only views of the queue history
// ============================================================================

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ChuLiYu/git-queue/internal/message"
	"github.com/ChuLiYu/git-queue/internal/queue"
)

func (a *app) buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status",
		Long:  "Display job counts, the next job and the job in flight",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.showStatus(cmd.Context())
		},
	}
}

func (a *app) showStatus(ctx context.Context) error {
	q, err := a.openConfiguredQueue(ctx)
	if err != nil {
		return err
	}

	out := a.stdout
	stats := q.Stats()

	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(out, "║  Queue: %-50s║\n", q.Name())
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "📋 Repository:")
	fmt.Fprintf(out, "  └─ Directory:      %s\n", a.cfg.Repo.Dir)
	if latest := q.LatestMessage(); !latest.IsNull() {
		fmt.Fprintf(out, "  └─ Latest Commit:  %s (%s)\n", latest.CommitHash(), latest.Kind())
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "📊 Jobs:")
	fmt.Fprintf(out, "  ├─ Total:          %d\n", stats.Total)
	fmt.Fprintf(out, "  ├─ ⏳ Pending:      %d\n", stats.Pending)
	fmt.Fprintf(out, "  ├─ 🔄 In-Flight:    %d\n", stats.InFlight)
	fmt.Fprintf(out, "  └─ ✅ Finished:     %d\n", stats.Finished)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "🔜 Next Job:")
	printJob(out, q.NextJob())
	fmt.Fprintln(out, "🏃 In Flight:")
	printJob(out, q.StartedJob())

	return nil
}

func printJob(out io.Writer, job queue.Job) {
	if job.IsNull() {
		fmt.Fprintln(out, "  └─ none")
		return
	}
	fmt.Fprintf(out, "  ├─ ID:      %s\n", job.ID())
	fmt.Fprintf(out, "  ├─ Commit:  %s\n", job.CommitHash())
	fmt.Fprintf(out, "  └─ Payload: %s\n", oneLine(job.Payload()))
}

func (a *app) buildLogCommand() *cobra.Command {
	var (
		oldest bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List the queue messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.openConfiguredQueue(cmd.Context())
			if err != nil {
				return err
			}
			messages := q.Messages()
			if oldest {
				messages = q.Log().Oldest()
			}
			if limit > 0 && len(messages) > limit {
				messages = messages[:limit]
			}
			return a.printMessages(messages)
		},
	}
	cmd.Flags().BoolVar(&oldest, "oldest", false, "list oldest first")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n messages")
	return cmd
}

func (a *app) printMessages(messages []message.CommittedMessage) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMMIT\tKIND\tJOB\tREF\tDATE\tPAYLOAD")
	for _, m := range messages {
		ref := "-"
		if !m.JobRef().IsNull() {
			ref = m.JobRef().Short().String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ShortCommitHash(),
			m.Kind(),
			m.JobID(),
			ref,
			m.CommitInfo().Date.Format("2006-01-02 15:04:05"),
			oneLine(m.Payload()),
		)
	}
	return tw.Flush()
}

func (a *app) buildVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the queue history and report invariant violations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.openConfiguredQueue(cmd.Context())
			if err != nil {
				return err
			}

			err = q.Verify()
			violations := multierr.Errors(err)
			for _, v := range violations {
				fmt.Fprintf(a.stdout, "✗ %v\n", v)
			}
			if err != nil {
				a.logger.Warn("queue history is inconsistent", zap.Int("violations", len(violations)))
				return fmt.Errorf("queue %s: %d violation(s): %w", q.Name(), len(violations), err)
			}

			fmt.Fprintf(a.stdout, "✓ queue %s: %d messages, no violations\n", q.Name(), q.Log().Len())
			return nil
		},
	}
}

func oneLine(s string) string {
	const width = 60
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) > width {
		return string(runes[:width-3]) + "..."
	}
	return string(runes)
}
