// Package jobs is the in-process task queue behind the submission pipeline.
// Delivery is at-least-once with a bounded retry count; a task that keeps
// failing is dropped with a log line, never bubbled back to the request
// that enqueued it.
package jobs

import (
	"context"
	"sync"
	"time"

	"dealintake/cmd/internal/metric"

	"github.com/labstack/gommon/log"
)

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Queue struct {
	tasks      chan Task
	maxRetries int
	backoff    time.Duration
	workers    int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewQueue(workers, maxRetries int) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		tasks:      make(chan Task, 64),
		maxRetries: maxRetries,
		backoff:    30 * time.Second,
		workers:    workers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for task := range q.tasks {
				q.run(task)
			}
		}()
	}
}

// Enqueue hands a task to the workers. It never blocks the caller: a full
// queue drops the task, which is acceptable because every pipeline stage
// can be replayed from the admin dashboard.
func (q *Queue) Enqueue(task Task) {
	select {
	case q.tasks <- task:
	default:
		metric.Jobs.WithLabelValues(task.Name, "dropped").Inc()
		log.Errorf("job queue full, dropping task %s", task.Name)
	}
}

// Stop drains the queue and waits for in-flight tasks.
func (q *Queue) Stop() {
	q.once.Do(func() {
		close(q.tasks)
		q.wg.Wait()
		q.cancel()
	})
}

func (q *Queue) run(task Task) {
	for attempt := 1; attempt <= q.maxRetries; attempt++ {
		err := task.Run(q.ctx)
		if err == nil {
			metric.Jobs.WithLabelValues(task.Name, "ok").Inc()
			return
		}

		log.Errorf("task %s failed (attempt %d/%d): %v", task.Name, attempt, q.maxRetries, err)
		if attempt < q.maxRetries {
			metric.Jobs.WithLabelValues(task.Name, "retry").Inc()
			select {
			case <-q.ctx.Done():
				return
			case <-time.After(q.backoff):
			}
		}
	}
	metric.Jobs.WithLabelValues(task.Name, "failed").Inc()
}
