package inmemory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/ledger-bot/internal/jobs"
)

func TestPublishAssignsDefaults(t *testing.T) {
	q := NewQueue(10, 1)
	defer q.Close()

	job := &jobs.ProcessMessageJob{UserID: "u1", Text: "lunch 100"}
	if err := q.PublishMessage(context.Background(), job); err != nil {
		t.Fatalf("PublishMessage() error = %v", err)
	}

	if job.JobID == "" {
		t.Error("JobID not assigned")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("Status = %q, want pending", job.Status)
	}
	if job.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	q := NewQueue(10, 3)
	defer q.Close()

	var processed int32
	done := make(chan struct{})

	handler := func(_ context.Context, _ *jobs.ProcessMessageJob) error {
		if atomic.AddInt32(&processed, 1) == 5 {
			close(done)
		}
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := q.PublishMessage(context.Background(), &jobs.ProcessMessageJob{UserID: "u1", Text: "x"}); err != nil {
			t.Fatalf("PublishMessage() error = %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("processed %d of 5 jobs", atomic.LoadInt32(&processed))
	}
}

func TestSameUserJobsNeverOverlap(t *testing.T) {
	q := NewQueue(20, 4)
	defer q.Close()

	const perUser = 5

	var mu sync.Mutex
	inFlight := map[string]int{}
	overlaps := 0
	var wg sync.WaitGroup

	handler := func(_ context.Context, job *jobs.ProcessMessageJob) error {
		defer wg.Done()

		mu.Lock()
		inFlight[job.UserID]++
		if inFlight[job.UserID] > 1 {
			overlaps++
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight[job.UserID]--
		mu.Unlock()
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, user := range []string{"u1", "u2"} {
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			if err := q.PublishMessage(context.Background(), &jobs.ProcessMessageJob{UserID: user, Text: "x"}); err != nil {
				t.Fatalf("PublishMessage() error = %v", err)
			}
		}
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs did not finish")
	}

	if overlaps != 0 {
		t.Errorf("same-user jobs overlapped %d times", overlaps)
	}
}

func TestPublishAfterStop(t *testing.T) {
	q := NewQueue(1, 1)
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	err := q.PublishMessage(context.Background(), &jobs.ProcessMessageJob{UserID: "u1"})
	if err == nil {
		t.Error("PublishMessage() after Stop: want error")
	}
}

func TestStopWaitsForInFlightJobs(t *testing.T) {
	q := NewQueue(1, 1)

	started := make(chan struct{})
	var finished int32

	handler := func(_ context.Context, _ *jobs.ProcessMessageJob) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := q.PublishMessage(context.Background(), &jobs.ProcessMessageJob{UserID: "u1"}); err != nil {
		t.Fatalf("PublishMessage() error = %v", err)
	}

	<-started
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Error("Stop() returned before the in-flight job finished")
	}
}
