package models

import "time"

// Job names recorded in job_runs.
const (
	JobRetentionSweep = "retention_sweep"
	JobPublishScan    = "publish_scan"
)

// JobRun is the operational summary of the most recent run of a
// scheduled job, surfaced by the ops status endpoint.
type JobRun struct {
	Name      string    `db:"name" json:"name"`
	LastRunAt time.Time `db:"last_run_at" json:"last_run_at"`
	Succeeded int64     `db:"succeeded" json:"succeeded"`
	Failed    int64     `db:"failed" json:"failed"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
}
