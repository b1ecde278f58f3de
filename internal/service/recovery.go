package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/models"
)

// RecoveryService force-restarts jobs that failed or got stuck. A
// recovered job is reset to new and re-runs the full pipeline from
// scratch on the next cycle; resuming mid-pipeline is deliberately not
// supported because intermediate artifacts may be stale relative to a
// changed source revision.
type RecoveryService struct {
	store  Store
	logger *zap.Logger
}

func NewRecoveryService(store Store, logger *zap.Logger) *RecoveryService {
	return &RecoveryService{store: store, logger: logger}
}

// RecoverJob resets one failed or stuck job to new. Completed jobs are
// refused; their post already exists.
func (r *RecoveryService) RecoverJob(id string) (*models.Job, error) {
	job, err := r.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	if job.Status == models.StatusDone {
		return nil, fmt.Errorf("job %s is done, nothing to recover", id)
	}
	if job.Status == models.StatusNew {
		return job, nil
	}

	r.reset(job)
	if err := r.store.SaveJob(job); err != nil {
		return nil, err
	}

	r.logger.Info("Job reset for re-run", zap.String("job_id", id))
	return job, nil
}

// RecoverStuck resets every job sitting in a non-terminal state for
// longer than olderThan. Returns how many were reset.
func (r *RecoveryService) RecoverStuck(olderThan time.Duration) (int, error) {
	stuck, err := r.store.StuckJobs(time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range stuck {
		job := &stuck[i]
		was := job.Status
		r.reset(job)
		if err := r.store.SaveJob(job); err != nil {
			r.logger.Error("Failed to reset stuck job",
				zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		r.logger.Warn("Stuck job reset for re-run",
			zap.String("job_id", job.ID), zap.String("was", was))
		count++
	}
	return count, nil
}

func (r *RecoveryService) reset(job *models.Job) {
	job.Status = models.StatusNew
	job.ErrorCode = ""
	job.ErrorMessage = ""
	job.StartedAt = nil
	job.FinishedAt = nil
	job.PostID = ""
	job.PostEditLink = ""
}
