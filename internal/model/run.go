package model

import "time"

// RunStatus is the outcome of a pipeline run.
type RunStatus string

// Pipeline run statuses.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunDegraded  RunStatus = "degraded"
	RunFailed    RunStatus = "failed"
)

// PipelineRun records one execution of the ingestion pipeline.
type PipelineRun struct {
	StartedAt  time.Time
	FinishedAt *time.Time
	ID         string
	Status     RunStatus
	Error      string
	Warnings   []string
	Loaded     int
	Classified int
	Enriched   int
}
