package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKGROUND JOBS
// ══════════════════════════════════════════════════════════════════════════════

// JobMonitor reports on and triggers scheduled jobs.
type JobMonitor interface {
	GetJobInfo(name string) (*scheduler.JobInfo, error)
	History(limit int) []scheduler.JobResult
	RunNow(ctx context.Context, name string) (*scheduler.JobResult, error)
}

// jobRunsShown caps the recent runs returned with a job.
const jobRunsShown = 10

// JobRunDTO is one execution of a job.
type JobRunDTO struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Manual      bool      `json:"manual"`
}

// JobDTO describes a registered job with its most recent runs.
type JobDTO struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Enabled     bool        `json:"enabled"`
	Schedule    string      `json:"schedule"`
	LastRun     *time.Time  `json:"last_run,omitempty"`
	NextRun     *time.Time  `json:"next_run,omitempty"`
	RunCount    int64       `json:"run_count"`
	FailCount   int64       `json:"fail_count"`
	Skipped     int64       `json:"skipped"`
	Runs        []JobRunDTO `json:"runs"`
}

func newJobRunDTO(r scheduler.JobResult) JobRunDTO {
	dto := JobRunDTO{
		RunID:       r.RunID,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		DurationMS:  r.Duration.Milliseconds(),
		Success:     r.Success,
		Manual:      r.Manual,
	}
	if r.Error != nil {
		dto.Error = r.Error.Error()
	}
	return dto
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Server) jobDTO(name string) (*JobDTO, error) {
	info, err := s.deps.Jobs.GetJobInfo(name)
	if err != nil {
		return nil, err
	}

	dto := &JobDTO{
		Name:        info.Name,
		Description: info.Description,
		Enabled:     info.Enabled,
		Schedule:    info.Schedule,
		LastRun:     timePtr(info.LastRun),
		NextRun:     timePtr(info.NextRun),
		RunCount:    info.RunCount,
		FailCount:   info.FailCount,
		Skipped:     info.Skipped,
		Runs:        []JobRunDTO{},
	}
	if !info.Enabled {
		dto.NextRun = nil
	}

	// History is oldest first; the newest runs are listed first.
	history := s.deps.Jobs.History(0)
	for i := len(history) - 1; i >= 0 && len(dto.Runs) < jobRunsShown; i-- {
		if history[i].JobName == name {
			dto.Runs = append(dto.Runs, newJobRunDTO(history[i]))
		}
	}
	return dto, nil
}

func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeJSONError(w, r, http.StatusNotFound, "not_found", "no such job")
	case errors.Is(err, scheduler.ErrJobRunning):
		writeJSONError(w, r, http.StatusConflict, "conflict", "the job is already running")
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeNotConfigured(w, r)
		return
	}

	dto, err := s.jobDTO(r.PathValue("name"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleRunJob runs a job synchronously. A failed run still answers 200
// with success=false; the failure is the job's, not the request's.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeNotConfigured(w, r)
		return
	}

	result, err := s.deps.Jobs.RunNow(r.Context(), r.PathValue("name"))
	if result == nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newJobRunDTO(*result))
}
