package db

import (
	"time"

	"podforge/internal/models"
)

// RecordJobRun upserts the operational summary for a scheduled job.
func RecordJobRun(name string, ranAt time.Time, succeeded, failed int64, notes string) error {
	var notesVal *string
	if notes != "" {
		notesVal = &notes
	}
	_, err := DB.Exec(`
		INSERT INTO job_runs (name, last_run_at, succeeded, failed, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			succeeded = EXCLUDED.succeeded,
			failed = EXCLUDED.failed,
			notes = EXCLUDED.notes`,
		name, ranAt, succeeded, failed, notesVal)
	return err
}

// ListJobRuns returns the last-run summaries for all scheduled jobs.
func ListJobRuns() ([]models.JobRun, error) {
	var runs []models.JobRun
	err := DB.Select(&runs, "SELECT * FROM job_runs ORDER BY name")
	return runs, err
}
