package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/astra-nvim/astra/internal/queue"
	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrNilRequest   = errors.New("nil task request")
)

// Executor runs one request to completion.
type Executor interface {
	Execute(ctx context.Context, req Request) (*astrasync.SyncResult, error)
}

type ExecutorFunc func(ctx context.Context, req Request) (*astrasync.SyncResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (*astrasync.SyncResult, error) {
	return f(ctx, req)
}

// Manager owns the task registry and a fixed pool of workers. Submission never
// blocks; pending ids wait in a priority queue until a worker picks them up.
type Manager struct {
	executor Executor
	workers  int
	now      func() time.Time

	mu    sync.RWMutex
	tasks map[string]*Task

	queue *queue.PriorityQueue[string]
	wake  chan struct{}
	eg    *errgroup.Group
}

type ManagerOption func(*Manager)

func WithWorkers(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

func NewManager(executor Executor, opts ...ManagerOption) *Manager {
	m := &Manager{
		executor: executor,
		workers:  DefaultWorkers,
		now:      time.Now,
		tasks:    make(map[string]*Task),
		queue:    queue.NewPriorityQueue[string](),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the workers. They stop when ctx is done; tasks still pending at that
// point stay pending.
func (m *Manager) Start(ctx context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < m.workers; i++ {
		eg.Go(func() error {
			m.worker(ctx, i)
			return nil
		})
	}
	m.eg = eg
	slog.Info("task manager started", "workers", m.workers)
}

// Wait blocks until every worker has returned.
func (m *Manager) Wait() error {
	if m.eg == nil {
		return nil
	}
	return m.eg.Wait()
}

// Submit registers a pending task and returns its id without waiting for it to run.
func (m *Manager) Submit(req Request) (string, error) {
	if req == nil {
		return "", ErrNilRequest
	}

	now := m.now()
	task := &Task{
		ID:        uuid.NewString(),
		Type:      req.TaskType(),
		Status:    TaskStatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	m.queue.Enqueue(task.ID, priority(req))
	m.signal()

	slog.Debug("task submitted", "id", task.ID, "type", task.Type)
	return task.ID, nil
}

// Get returns a copy of the task.
func (m *Manager) Get(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task.Copy(), nil
}

// List returns copies of every task, oldest first.
func (m *Manager) List() []*Task {
	m.mu.RLock()
	list := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		list = append(list, task.Copy())
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Cleanup evicts terminal tasks last updated more than maxAge ago and returns how many
// went. Pending and running tasks are kept whatever their age.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, task := range m.tasks {
		if task.IsTerminal() && task.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("task cleanup", "removed", removed, "max_age", maxAge)
	}
	return removed
}

// Cancel accepts a cancellation request. Transfers cannot be interrupted, so the task
// carries on and finishes normally.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	task, ok := m.tasks[id]
	var status TaskStatus
	if ok {
		status = task.Status
	}
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	slog.Info("task cancel requested, not supported", "id", id, "status", status)
	return nil
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) worker(ctx context.Context, n int) {
	for {
		id, ok := m.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
			}
			continue
		}

		// pass the wakeup on if there is more work
		if m.queue.Len() > 0 {
			m.signal()
		}

		m.run(ctx, n, id)

		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) run(ctx context.Context, worker int, id string) {
	req, ok := m.markRunning(id)
	if !ok {
		return
	}

	slog.Info("task running", "id", id, "type", req.TaskType(), "worker", worker)
	result, err := m.execute(ctx, req)
	m.finish(id, result, err)
}

func (m *Manager) execute(ctx context.Context, req Request) (result *astrasync.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return m.executor.Execute(ctx, req)
}

func (m *Manager) markRunning(id string) (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.Status != TaskStatusPending {
		return nil, false
	}
	task.Status = TaskStatusRunning
	task.UpdatedAt = m.now()
	return task.Request, true
}

// finish is the single terminal write for a task.
func (m *Manager) finish(id string, result *astrasync.SyncResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.IsTerminal() {
		return
	}

	task.UpdatedAt = m.now()
	if err != nil {
		task.Status = TaskStatusFailed
		task.Error = err.Error()
		slog.Error("task failed", "id", id, "type", task.Type, "error", err)
		return
	}

	task.Status = TaskStatusCompleted
	task.Result = result
	slog.Info("task completed", "id", id, "type", task.Type)
}
