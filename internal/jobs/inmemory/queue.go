// Package inmemory is a channel-backed implementation of the message job
// queue, suitable for single-instance deployments.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-bot/internal/jobs"
)

// Queue distributes message jobs across a worker pool. Jobs for the same
// user are serialized: a worker takes the user's slot before running and two
// messages from one user can never race on the "latest record" fallback.
// Jobs for different users run concurrently.
type Queue struct {
	jobChan   chan *jobs.ProcessMessageJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool

	workerCount int

	userMu    sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewQueue creates a new in-memory job queue. bufferSize determines how many
// jobs can be queued before PublishMessage blocks.
func NewQueue(bufferSize, workerCount int) *Queue {
	if workerCount <= 0 {
		workerCount = 5
	}
	return &Queue{
		jobChan:     make(chan *jobs.ProcessMessageJob, bufferSize),
		closeChan:   make(chan struct{}),
		workerCount: workerCount,
		userLocks:   make(map[string]*sync.Mutex),
	}
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)

// PublishMessage implements the Publisher interface.
func (q *Queue) PublishMessage(ctx context.Context, job *jobs.ProcessMessageJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = time.Now()
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *jobs.ProcessMessageJob, handler jobs.Handler) {
	lock := q.lockFor(job.UserID)
	lock.Lock()
	defer lock.Unlock()

	job.Status = jobs.JobStatusRunning
	if err := handler(ctx, job); err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		return
	}
	job.Status = jobs.JobStatusCompleted
}

// lockFor returns the serialization lock for a user, creating it on first
// contact. Locks are never reclaimed; the map grows with the active user
// set, which is bounded for a personal bot.
func (q *Queue) lockFor(userID string) *sync.Mutex {
	q.userMu.Lock()
	defer q.userMu.Unlock()

	lock, ok := q.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		q.userLocks[userID] = lock
	}
	return lock
}

// Stop implements the Consumer interface. It stops the queue and waits for
// in-flight jobs to finish.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}
