// Package cli implements the carbonctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-carbon/jobs"
)

// Enqueuer is the subset of asynq.Client used by the CLI.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Inspector is the subset of asynq.Inspector used by the CLI.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	SchedulerEntries() ([]*asynq.SchedulerEntry, error)
	Close() error
}

// JobsCLI wraps manual management helpers for the asynq queues.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// NewJobsCLIWith builds a JobsCLI over injected dependencies.
func NewJobsCLIWith(client Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Recover enqueues an immediate recovery sweep.
func (c *JobsCLI) Recover(ctx context.Context) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueContext(ctx, jobs.NewReportRecoverTask(), asynq.Queue(jobs.QueueReports), asynq.MaxRetry(0))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueues reports the metrics of the reports and default queues.
// Queues that have never received a task report zeros.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, 2)
	for _, name := range []string{jobs.QueueReports, jobs.QueueDefault} {
		stats := QueueStats{Queue: name}
		info, err := c.inspector.GetQueueInfo(name)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("jobs cli: queue %s: %w", name, err)
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

// ScheduledEntry is either a delayed task or a cron registration.
type ScheduledEntry struct {
	Kind    string    `json:"kind"`
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Spec    string    `json:"spec,omitempty"`
	NextRun time.Time `json:"nextRun"`
}

// ListScheduled returns delayed report tasks followed by cron entries.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]ScheduledEntry, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListScheduledTasks(jobs.QueueReports, asynq.PageSize(size), asynq.Page(1))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, err
	}
	out := make([]ScheduledEntry, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ScheduledEntry{Kind: "task", ID: t.ID, Type: t.Type, NextRun: t.NextProcessAt})
	}
	entries, err := c.inspector.SchedulerEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		entry := ScheduledEntry{Kind: "cron", ID: e.ID, Spec: e.Spec, NextRun: e.Next}
		if e.Task != nil {
			entry.Type = e.Task.Type()
		}
		out = append(out, entry)
	}
	return out, nil
}

// Options control command output.
type Options struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// Run dispatches a `jobs` subcommand and returns the process exit code.
func (c *JobsCLI) Run(ctx context.Context, args []string, opts Options) int {
	if len(args) == 0 {
		fmt.Fprintln(opts.Stderr, "usage: carbonctl jobs <stats|recover|scheduled>")
		return 2
	}
	switch args[0] {
	case "stats":
		stats, err := c.InspectQueues(ctx)
		if err != nil {
			return fail(opts, err)
		}
		if opts.JSONOutput {
			return writeJSON(opts, stats)
		}
		tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
		}
		_ = tw.Flush()
		return 0
	case "recover":
		info, err := c.Recover(ctx)
		if err != nil {
			return fail(opts, err)
		}
		if opts.JSONOutput {
			return writeJSON(opts, map[string]string{"id": info.ID, "queue": info.Queue})
		}
		fmt.Fprintf(opts.Stdout, "enqueued %s on %s\n", info.ID, info.Queue)
		return 0
	case "scheduled":
		entries, err := c.ListScheduled(ctx, 20)
		if err != nil {
			return fail(opts, err)
		}
		if opts.JSONOutput {
			return writeJSON(opts, entries)
		}
		tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tID\tTYPE\tSPEC\tNEXT RUN")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Kind, e.ID, e.Type, e.Spec, e.NextRun.UTC().Format(time.RFC3339))
		}
		_ = tw.Flush()
		return 0
	default:
		fmt.Fprintf(opts.Stderr, "unknown jobs command %q\n", args[0])
		return 2
	}
}

func fail(opts Options, err error) int {
	fmt.Fprintf(opts.Stderr, "error: %v\n", err)
	return 1
}

func writeJSON(opts Options, v any) int {
	enc := json.NewEncoder(opts.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail(opts, err)
	}
	return 0
}
