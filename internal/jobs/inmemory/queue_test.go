package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/karoltaylor/finance-ingest/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.IngestFileJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 2, store)
	defer q.Close()

	processed := make(chan string, 1)
	err := q.Start(context.Background(), func(ctx context.Context, job *jobs.IngestFileJob) error {
		job.Transactions = 12
		processed <- job.GCSURI
		return nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.IngestFileJob{GCSURI: "gs://exports/a.csv", Filename: "a.csv"}
	if err := q.PublishIngestFile(context.Background(), job); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("publish did not assign a job ID")
	}

	select {
	case uri := <-processed:
		if uri != "gs://exports/a.csv" {
			t.Errorf("handler saw %q", uri)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if final.Transactions != 12 {
		t.Errorf("result summary = %d transactions, want 12", final.Transactions)
	}
	if final.CompletedAt == nil {
		t.Error("completed job has no completion time")
	}
}

func TestQueueRetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	if err := q.Start(context.Background(), func(ctx context.Context, job *jobs.IngestFileJob) error {
		return errors.New("bucket unreachable")
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.IngestFileJob{GCSURI: "gs://exports/b.csv", Filename: "b.csv", MaxRetries: 1}
	if err := q.PublishIngestFile(context.Background(), job); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if final.Error == "" {
		t.Error("failed job carries no error message")
	}
	if final.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", final.RetryCount)
	}
}

func TestStoreListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Now()
	for i, st := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted} {
		job := &jobs.IngestFileJob{
			JobID:     string(rune('a' + i)),
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	completed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("got %d completed jobs, want 2", len(completed))
	}
	if completed[0].JobID != "c" {
		t.Errorf("first job = %s, want newest (c)", completed[0].JobID)
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d jobs with limit 1", len(limited))
	}
}
