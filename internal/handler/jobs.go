package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/RBarbieri13/Decant-sub001/internal/port"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

// Job states.
const (
	JobRunning   = "running"
	JobComplete  = "complete"
	JobCancelled = "cancelled"
	JobError     = "error"
)

// ErrJobRunning is returned when a recompute is already in progress.
var ErrJobRunning = errors.New("a recompute job is already running")

// JobStatus represents the current state of a recompute job.
type JobStatus struct {
	ID          string                   `json:"id"`
	Status      string                   `json:"status"`
	Progress    int                      `json:"progress"`
	Total       int                      `json:"total"`
	Request     service.RecomputeRequest `json:"request"`
	Report      *service.RecomputeReport `json:"report,omitempty"`
	Error       string                   `json:"error,omitempty"`
	StartedAt   time.Time                `json:"startedAt"`
	CompletedAt time.Time                `json:"completedAt,omitempty"`
}

func (j *JobStatus) done() bool { return j.Status != JobRunning }

// Recomputer runs similarity recomputes.
type Recomputer interface {
	ValidateRecompute(req service.RecomputeRequest) error
	RecomputeCorpus(ctx context.Context, req service.RecomputeRequest, progress service.ProgressFunc) (*service.RecomputeReport, error)
}

// JobTracker runs recompute jobs in the background and keeps their state in
// memory. At most one job runs at a time.
type JobTracker struct {
	run     Recomputer
	mu      sync.RWMutex
	jobs    map[string]*JobStatus
	cancels map[string]context.CancelFunc
	subs    map[string][]chan JobStatus
	wg      sync.WaitGroup
}

// NewJobTracker creates a new job tracker.
func NewJobTracker(run Recomputer) *JobTracker {
	return &JobTracker{
		run:     run,
		jobs:    make(map[string]*JobStatus),
		cancels: make(map[string]context.CancelFunc),
		subs:    make(map[string][]chan JobStatus),
	}
}

// Start launches a recompute detached from the caller's request.
func (t *JobTracker) Start(req service.RecomputeRequest) (*JobStatus, error) {
	if err := t.run.ValidateRecompute(req); err != nil {
		return nil, err
	}
	t.mu.Lock()
	for _, j := range t.jobs {
		if !j.done() {
			t.mu.Unlock()
			return nil, ErrJobRunning
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	job := &JobStatus{
		ID:        uuid.NewString(),
		Status:    JobRunning,
		Request:   req,
		StartedAt: time.Now().UTC(),
	}
	t.jobs[job.ID] = job
	t.cancels[job.ID] = cancel
	snapshot := *job
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		report, err := t.run.RecomputeCorpus(ctx, req, func(done, total int) {
			t.update(job.ID, func(j *JobStatus) {
				j.Progress = done
				j.Total = total
			})
		})
		t.update(job.ID, func(j *JobStatus) {
			j.CompletedAt = time.Now().UTC()
			switch {
			case err != nil:
				j.Status = JobError
				j.Error = err.Error()
			case report.Cancelled:
				j.Status = JobCancelled
			default:
				j.Status = JobComplete
			}
			j.Report = report
		})
		if err != nil {
			slog.Error("recompute job failed", "job_id", job.ID, "error", err)
		}
	}()

	slog.Info("recompute job started", "job_id", job.ID, "method", req.Method)
	return &snapshot, nil
}

// update applies fn to a job and notifies subscribers.
func (t *JobTracker) update(id string, fn func(*JobStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	fn(job)
	if job.done() {
		delete(t.cancels, id)
	}

	// Sends happen under the lock so Unsubscribe cannot close a channel mid-send.
	for _, ch := range t.subs[id] {
		select {
		case ch <- *job:
		default:
			if job.done() {
				// Make room for the final state.
				select {
				case <-ch:
				default:
				}
				ch <- *job
			}
		}
	}
}

// Cancel asks a running job to stop after the pairs in flight.
func (t *JobTracker) Cancel(id string) (*JobStatus, error) {
	t.mu.RLock()
	_, ok := t.jobs[id]
	cancel := t.cancels[id]
	t.mu.RUnlock()
	if !ok {
		return nil, port.ErrJobNotFound
	}
	if cancel != nil {
		cancel()
	}
	return t.GetJob(id)
}

// GetJob returns a job status.
func (t *JobTracker) GetJob(id string) (*JobStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, port.ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// Subscribe returns a channel that receives job updates.
func (t *JobTracker) Subscribe(id string) chan JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan JobStatus, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes a channel from subscribers.
func (t *JobTracker) Unsubscribe(id string, ch chan JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(ch)
}

// Shutdown cancels running jobs and waits for them to finish their pairs.
func (t *JobTracker) Shutdown(ctx context.Context) error {
	t.mu.RLock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JobsHandler handles recompute job endpoints.
type JobsHandler struct {
	tracker *JobTracker
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(tracker *JobTracker) *JobsHandler {
	return &JobsHandler{tracker: tracker}
}

// Register sets up job routes.
func (h *JobsHandler) Register(router fiber.Router) {
	sim := router.Group("/similarity")
	sim.Post("/recompute", h.Start)
	sim.Get("/jobs/:id", h.GetStatus)
	sim.Get("/jobs/:id/stream", h.StreamSSE)
	sim.Delete("/jobs/:id", h.Cancel)
}

// Start queues a recompute and answers 202 with the job.
func (h *JobsHandler) Start(c fiber.Ctx) error {
	var req service.RecomputeRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	job, err := h.tracker.Start(req)
	if errors.Is(err, ErrJobRunning) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "kind": "Conflict"})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

// GetStatus returns the current job status.
func (h *JobsHandler) GetStatus(c fiber.Ctx) error {
	job, err := h.tracker.GetJob(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(job)
}

// Cancel stops a running job.
func (h *JobsHandler) Cancel(c fiber.Ctx) error {
	job, err := h.tracker.Cancel(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(job)
}

// StreamSSE streams job updates via Server-Sent Events.
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("id")

	job, err := h.tracker.GetJob(id)
	if err != nil {
		return fail(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	if job.done() {
		data, _ := json.Marshal(job)
		return c.SendString(fmt.Sprintf("event: %s\ndata: %s\n\n", job.Status, data))
	}

	ch := h.tracker.Subscribe(id)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.tracker.Unsubscribe(id, ch)

		data, _ := json.Marshal(job)
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
		w.Flush()

		// The job may have finished before the subscription was in place.
		if cur, err := h.tracker.GetJob(id); err == nil && cur.done() {
			data, _ := json.Marshal(cur)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", cur.Status, data)
			w.Flush()
			return
		}

		timeout := time.After(30 * time.Minute)
		for {
			select {
			case update := <-ch:
				data, _ := json.Marshal(update)
				event := "progress"
				if update.done() {
					event = update.Status
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
				if err := w.Flush(); err != nil {
					return
				}
				if update.done() {
					return
				}
			case <-timeout:
				slog.Warn("SSE timeout", "job_id", id)
				return
			}
		}
	})
}
