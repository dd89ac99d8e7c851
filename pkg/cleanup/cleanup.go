// Package cleanup schedules asynchronous deletion of a finalized job's
// dependency artifacts by handing tasks to an external async-task service.
// Scheduling is fire-and-forget: delivery failures are logged, never
// surfaced to the tracking pass.
package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const taskDeleteDependencySources = "delete_dependency_sources"

// Task is the wire format handed to the async-task service.
type Task struct {
	Task    string   `json:"task"`
	JobID   string   `json:"job_id"`
	UserID  string   `json:"user_id"`
	Sources []string `json:"sources"`
}

// Scheduler posts cleanup tasks to an HTTP endpoint.
type Scheduler struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
	inflight sync.WaitGroup
}

// NewScheduler creates a scheduler posting to endpoint.
func NewScheduler(endpoint string, log *zap.Logger) (*Scheduler, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("cleanup endpoint is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}, nil
}

// ScheduleDeleteDependencySources hands the job's dependency sources to the
// async-task service. The delivery runs in the background and outlives the
// caller's context: a finished tracking pass must not cancel pending
// cleanup tasks. Pending deliveries are joined by Close.
func (s *Scheduler) ScheduleDeleteDependencySources(ctx context.Context, jobID, userID string, sources []string) {
	task := Task{
		Task:    taskDeleteDependencySources,
		JobID:   jobID,
		UserID:  userID,
		Sources: sources,
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.deliver(task)
	}()
}

// Close waits for all in-flight deliveries to complete. One-shot invocations
// must call this before exiting, otherwise process exit races the delivery
// goroutines and drops tasks.
func (s *Scheduler) Close() error {
	s.inflight.Wait()
	return nil
}

func (s *Scheduler) deliver(task Task) {
	body, err := json.Marshal(task)
	if err != nil {
		s.log.Error("marshal cleanup task", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		s.log.Error("build cleanup task request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("deliver cleanup task",
			zap.String("job_id", task.JobID),
			zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		s.log.Error("cleanup task rejected",
			zap.String("job_id", task.JobID),
			zap.String("status", resp.Status))
	}
}
