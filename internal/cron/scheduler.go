package cron

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const maxRunRecords = 50

// Task is one background housekeeping job.
type Task struct {
	Name     string
	Schedule string // cron expression, seconds field included
	Run      func() error
}

// RunRecord tracks a task execution.
type RunRecord struct {
	Task      string    `json:"task"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Scheduler runs housekeeping tasks on cron schedules.
type Scheduler struct {
	mu   sync.RWMutex
	cron *cron.Cron
	runs []RunRecord
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithSeconds())}
}

// Register adds a task. Schedules use the six-field form; five-field
// standard expressions are accepted too.
func (s *Scheduler) Register(t Task) error {
	spec := t.Schedule
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(spec); err != nil {
		if _, err2 := cron.ParseStandard(spec); err2 != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
		}
		spec = "0 " + spec
	}

	_, err := s.cron.AddFunc(spec, func() { s.runTask(t) })
	return err
}

func (s *Scheduler) runTask(t Task) {
	started := time.Now()
	err := t.Run()

	rec := RunRecord{
		Task:      t.Name,
		StartedAt: started,
		Duration:  time.Since(started).String(),
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
		slog.Warn("housekeeping task failed", "task", t.Name, "error", err)
	} else {
		slog.Debug("housekeeping task done", "task", t.Name, "duration", rec.Duration)
	}

	s.mu.Lock()
	s.runs = append(s.runs, rec)
	if len(s.runs) > maxRunRecords {
		s.runs = s.runs[len(s.runs)-maxRunRecords:]
	}
	s.mu.Unlock()
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler without waiting for running tasks.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Runs returns the most recent task executions, newest last.
func (s *Scheduler) Runs() []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RunRecord(nil), s.runs...)
}
