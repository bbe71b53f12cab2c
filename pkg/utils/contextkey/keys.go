package contextkey

import "context"

// key is a private type to avoid context key collisions across packages.
type key string

const (
	RunID key = "run_id"
	Stage key = "stage"
	PID   key = "pid"
)

// WithRunID returns a copy of ctx carrying the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunID, id)
}

// WithStage returns a copy of ctx tagged with the execution stage ("setup" or "container").
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, Stage, stage)
}

// WithPID returns a copy of ctx carrying the container process id as seen by the launcher.
func WithPID(ctx context.Context, pid int) context.Context {
	return context.WithValue(ctx, PID, pid)
}
