package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document waiting for extraction.
type Job struct {
	ID          string // caller label, usually the file path
	Document    entity.RawDocument
	SubmittedAt time.Time
}

// Result is delivered once per job, successful or not.
type Result struct {
	Job        Job
	Extraction entity.ExtractionResult
	Err        error
	Elapsed    time.Duration
}

// Extractor is the work each job runs.
type Extractor interface {
	Extract(ctx context.Context, doc entity.RawDocument) (entity.ExtractionResult, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
