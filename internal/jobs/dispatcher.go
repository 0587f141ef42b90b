// Package jobs moves units of work (imports, statement population, exports)
// from the request path onto background workers.
//
// LocalQueue runs jobs in-process on a bounded worker pool. PubSubQueue
// publishes them to a Google Cloud Pub/Sub topic so any number of worker
// processes can share the load. InlineQueue runs jobs synchronously for the
// CLI. Runner is the Handler they all call.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/google/uuid"
)

// Backend names accepted by New.
const (
	BackendLocal  = "local"
	BackendPubSub = "pubsub"
)

// Handler executes one job.
type Handler func(ctx context.Context, job core.Job) error

// Dispatcher accepts jobs and delivers them to a Handler.
type Dispatcher interface {
	core.Enqueuer

	// Start delivers jobs to h until ctx is cancelled.
	Start(ctx context.Context, h Handler) error
	// Close waits for in-flight jobs (bounded by ctx) and releases resources.
	Close(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Workers   int
	QueueSize int
	PubSub    PubSubOptions
}

// New creates the Dispatcher named by opts.Backend.
func New(ctx context.Context, opts Options) (Dispatcher, error) {
	switch opts.Backend {
	case "", BackendLocal:
		return NewLocalQueue(opts.Workers, opts.QueueSize), nil
	case BackendPubSub:
		if opts.PubSub.MaxOutstanding <= 0 {
			opts.PubSub.MaxOutstanding = opts.Workers
		}
		return NewPubSubQueue(ctx, opts.PubSub)
	default:
		return nil, fmt.Errorf("unknown jobs backend %q", opts.Backend)
	}
}

var errBadJob = errors.New("malformed job")

// EncodeJob is the wire form of a job.
func EncodeJob(job core.Job) ([]byte, error) {
	if err := checkJob(job); err != nil {
		return nil, err
	}
	return json.Marshal(job)
}

// DecodeJob parses a job produced by EncodeJob.
func DecodeJob(data []byte) (core.Job, error) {
	var job core.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return core.Job{}, fmt.Errorf("%w: %v", errBadJob, err)
	}
	if err := checkJob(job); err != nil {
		return core.Job{}, err
	}
	return job, nil
}

func checkJob(job core.Job) error {
	switch job.Kind {
	case core.JobImport, core.JobPopulate, core.JobExport:
	default:
		return fmt.Errorf("%w: unknown kind %q", errBadJob, job.Kind)
	}
	if job.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", errBadJob)
	}
	return nil
}
