// Package tasks runs background jobs on a fixed pool of workers and keeps an
// observable record for every job.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/depo/internal/core/model"
)

var (
	ErrQueueFull = errors.New("task queue is full")
	ErrClosed    = errors.New("task queue is closed")
	ErrNotFound  = errors.New("task not found")
)

// Job is the body of a task. Report lets a job record partial failures (for example
// the number of failed transcript pairs) without failing the whole task.
type Job func(ctx context.Context, report *Report) error

type Report struct {
	// TaskID is the id of the task the job runs under.
	TaskID string

	mu          sync.Mutex
	failedPairs int
}

func (r *Report) FailedPair() {
	r.mu.Lock()
	r.failedPairs++
	r.mu.Unlock()
}

func (r *Report) failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failedPairs
}

type item struct {
	id  string
	job Job
}

type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc
	items  chan item
	group  *errgroup.Group

	mu       sync.RWMutex
	tasks    map[string]*model.Task
	finished []string // ids of finished tasks, oldest first
	retain   int
	closed   bool

	newID func() string
	now   func() time.Time
}

// DefaultRetention is the number of finished task records a queue keeps.
const DefaultRetention = 1000

// NewQueue starts workers goroutines reading from a channel of capacity buffer.
func NewQueue(workers, buffer int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ctx:    ctx,
		cancel: cancel,
		items:  make(chan item, buffer),
		group:  &errgroup.Group{},
		tasks:  make(map[string]*model.Task),
		retain: DefaultRetention,
		newID:  func() string { return uuid.New().String() },
		now:    func() time.Time { return time.Now().UTC() },
	}

	for i := 0; i < workers; i++ {
		q.group.Go(q.work)
	}
	return q
}

// SetRetention bounds the finished task records kept for Get and List. Older records
// are dropped first; queued and running tasks are always kept. n < 1 is ignored.
func (q *Queue) SetRetention(n int) {
	if n < 1 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retain = n
	q.evict()
}

// Submit records a queued task and hands job to a worker. It never blocks.
func (q *Queue) Submit(kind model.TaskKind, subjectID int64, job Job) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}

	task := &model.Task{
		ID:        q.newID(),
		Kind:      kind,
		SubjectID: subjectID,
		Status:    model.TaskQueued,
		CreatedAt: q.now(),
	}

	select {
	case q.items <- item{id: task.ID, job: job}:
	default:
		return nil, ErrQueueFull
	}

	q.tasks[task.ID] = task
	snapshot := *task
	return &snapshot, nil
}

func (q *Queue) work() error {
	for it := range q.items {
		q.run(it)
	}
	return nil
}

func (q *Queue) run(it item) {
	q.update(it.id, func(t *model.Task) {
		started := q.now()
		t.Status = model.TaskRunning
		t.Attempts++
		t.StartedAt = &started
	})

	report := &Report{TaskID: it.id}
	err := q.safeRun(it, report)

	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[it.id]
	if !ok {
		return
	}
	finished := q.now()
	t.FinishedAt = &finished
	t.FailedPairs = report.failed()
	if err != nil {
		t.Status = model.TaskFailed
		t.Error = err.Error()
	} else {
		t.Status = model.TaskSucceeded
	}

	q.finished = append(q.finished, it.id)
	q.evict()
}

// evict drops the oldest finished records beyond the retention. Caller holds q.mu.
func (q *Queue) evict() {
	for len(q.finished) > q.retain {
		delete(q.tasks, q.finished[0])
		q.finished = q.finished[1:]
	}
}

func (q *Queue) safeRun(it item, report *Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("task %s panicked: %v", it.id, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return it.job(q.ctx, report)
}

func (q *Queue) update(id string, fn func(*model.Task)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.tasks[id]; ok {
		fn(t)
	}
}

func (q *Queue) Get(id string) (*model.Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	t, ok := q.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	snapshot := *t
	return &snapshot, nil
}

// List returns every known task, oldest first.
func (q *Queue) List() []model.Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]model.Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Shutdown stops accepting tasks and waits for queued and running jobs. If ctx ends
// first, the jobs' context is cancelled and ctx.Err() is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
