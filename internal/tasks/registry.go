// Package tasks tracks every in-flight download operation so that an
// admin can cancel all of them at once.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation is the unit of work a task runs. It must honor ctx
// cancellation down to its I/O waits.
type Operation func(ctx context.Context) error

// Task is the registry's handle for one running operation. It exists in
// the registry exactly as long as the operation has not reached a
// terminal state.
type Task struct {
	ID        uuid.UUID
	UserID    int64
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	err    error // written once before done closes
}

// Cancel requests cooperative cancellation of the operation
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the operation has finished and the handle has been
// removed from the registry.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the operation finishes and returns its error
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Registry is the process-wide set of in-flight cancellable operations.
// All request handlers share one instance.
type Registry struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[uuid.UUID]*Task)}
}

// Register starts op under a cancellable context, inserts its handle and
// arranges removal on completion. The removal happens exactly once, for
// every outcome; callers never clean up manually.
func (r *Registry) Register(ctx context.Context, userID int64, op Operation) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		ID:        uuid.New(),
		UserID:    userID,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()

	go func() {
		defer cancel()
		err := op(ctx)

		r.mu.Lock()
		delete(r.tasks, task.ID)
		r.mu.Unlock()

		task.err = err
		close(task.done)
	}()

	return task
}

// CancelAll signals cancellation on every task that has not yet finished
// and returns the number signaled. It operates on a point-in-time
// snapshot, so operations reacting to cancellation may register or
// deregister concurrently without deadlocking the sweep.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	snapshot := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		snapshot = append(snapshot, t)
	}
	r.mu.Unlock()

	canceled := 0
	for _, t := range snapshot {
		if t.finished() {
			continue
		}
		t.Cancel()
		canceled++
	}
	return canceled
}

// Len returns the number of in-flight tasks
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// TasksFor returns the handles currently registered for one user
func (r *Registry) TasksFor(userID int64) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Task
	for _, t := range r.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}
