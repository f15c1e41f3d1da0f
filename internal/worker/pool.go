package worker

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"transcript-tool/internal/database"
	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
	"transcript-tool/internal/services"
)

// jobLockTTL covers the longest possible run: download, processing wait and generation.
const jobLockTTL = 30 * time.Minute

type Runner interface {
	Run(ctx context.Context, req *models.TranscriptionRequest, sink services.ProgressSink) (*models.TranscriptRecord, error)
}

type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, fraction float64) error
	Complete(ctx context.Context, id uuid.UUID, transcriptID uuid.UUID, attempts int) error
	Fail(ctx context.Context, id uuid.UUID, kind, errMsg string, attempts int) error
}

type Publisher interface {
	Publish(ctx context.Context, sessionID string, msg models.WSMessage) error
}

type Pool struct {
	redis       *redis.Client
	runner      Runner
	jobs        JobStore
	publisher   Publisher
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, runner Runner, jobs JobStore, publisher Publisher, workerCount int) *Pool {
	return &Pool{
		redis:       redisClient,
		runner:      runner,
		jobs:        jobs,
		publisher:   publisher,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

// Queue is the producer side of the transcription queue.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

// Enqueue pushes a job onto the transcription queue.
func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.RPush(ctx, database.TranscriptionQueue, string(jobBytes)).Err()
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, database.TranscriptionQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := database.JobLockKey(job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", jobLockTTL).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (source: %s)", id, job.ID, job.SourceKind)
		p.processJob(ctx, &job)

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

// processJob runs one transcription job to a terminal state. Failed jobs are
// not re-queued: key rotation already happened inside the run.
func (p *Pool) processJob(ctx context.Context, job *models.Job) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobProcessing); err != nil {
		log.Printf("Job %s: failed to mark processing: %v", job.ID, err)
	}

	src, release, err := openSource(job)
	if err != nil {
		p.handleFailure(ctx, job, err, 0)
		return
	}
	defer release()

	req := models.NewTranscriptionRequest(job.SessionID, src, job.SourceLanguage, job.TargetLanguage)
	record, err := p.runner.Run(ctx, req, func(u services.ProgressUpdate) {
		if err := p.jobs.UpdateProgress(ctx, job.ID, u.Fraction); err != nil {
			log.Printf("Job %s: failed to store progress: %v", job.ID, err)
		}
		p.publish(ctx, job, models.WSMessage{
			Type: "progress",
			Payload: models.ProgressEvent{
				JobID:    job.ID,
				Fraction: u.Fraction,
				Stage:    u.Stage,
				Message:  u.Message,
			},
		})
	})
	if err != nil {
		p.handleFailure(ctx, job, err, req.Attempts())
		return
	}
	p.handleSuccess(ctx, job, record, req.Attempts())
}

// openSource builds the VideoSource for a job. Staged uploads are opened from
// disk and removed once the job finishes.
func openSource(job *models.Job) (models.VideoSource, func(), error) {
	src := models.VideoSource{Kind: job.SourceKind, Reference: job.Reference, FileName: job.DisplayName}
	if job.SourceKind != models.SourceUpload {
		return src, func() {}, nil
	}
	if job.StagedPath == nil || *job.StagedPath == "" {
		return src, func() {}, apperrors.New(apperrors.KindInvalidArgument, "upload job has no staged file")
	}

	path := *job.StagedPath
	f, err := os.Open(path)
	if err != nil {
		return src, func() {}, apperrors.Wrap(err, apperrors.KindInternal, "staged upload is missing")
	}
	if info, err := f.Stat(); err == nil {
		src.SizeBytes = info.Size()
	}
	src.Content = f

	return src, func() {
		f.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove staged upload %s: %v", path, err)
		}
	}, nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, record *models.TranscriptRecord, attempts int) {
	if err := p.jobs.Complete(ctx, job.ID, record.ID, attempts); err != nil {
		log.Printf("Job %s: failed to mark completed: %v", job.ID, err)
	}

	p.publish(ctx, job, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:        job.ID,
			TranscriptID: record.ID,
		},
	})

	log.Printf("Job %s completed successfully (%d chars)", job.ID, len(record.Text))
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error, attempts int) {
	kind := string(apperrors.KindOf(err))
	msg := apperrors.UserMessage(err)
	log.Printf("Job %s failed permanently: %v", job.ID, err)

	if storeErr := p.jobs.Fail(ctx, job.ID, kind, msg, attempts); storeErr != nil {
		log.Printf("Job %s: failed to mark failed: %v", job.ID, storeErr)
	}

	p.publish(ctx, job, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    kind,
			ErrorMessage: msg,
		},
	})
}

func (p *Pool) publish(ctx context.Context, job *models.Job, msg models.WSMessage) {
	if err := p.publisher.Publish(ctx, job.SessionID, msg); err != nil {
		log.Printf("Job %s: failed to publish %s update: %v", job.ID, msg.Type, err)
	}
}
