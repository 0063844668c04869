package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"claimease/internal/domain"
	"claimease/internal/port"
)

const (
	jobKeyPrefix    = "job:"
	cancelKeyPrefix = "cancel:"
)

// JobKey returns the store key of a job record.
func JobKey(id string) string { return jobKeyPrefix + id }

// CancelKey returns the store key of a job's cancellation flag.
func CancelKey(id string) string { return cancelKeyPrefix + id }

type jobRepo struct {
	kv  port.KVStore
	ttl time.Duration
}

// NewJobRepo creates a JobRepository that stores each job as one JSON value
// under job:{id}. A zero ttl keeps records indefinitely.
func NewJobRepo(kv port.KVStore, ttl time.Duration) port.JobRepository {
	return &jobRepo{kv: kv, ttl: ttl}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	if err := r.put(ctx, job); err != nil {
		return fmt.Errorf("jobRepo.Create: %w", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	raw, err := r.kv.Get(ctx, JobKey(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobRepo.GetByID: %w", err)
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("jobRepo.GetByID: decoding %s: %w", id, err)
	}
	return &job, nil
}

func (r *jobRepo) Update(ctx context.Context, job *domain.Job) error {
	if err := r.put(ctx, job); err != nil {
		return fmt.Errorf("jobRepo.Update: %w", err)
	}
	return nil
}

// List returns every stored job, newest first. Records that vanish or fail
// to decode between the key scan and the read are skipped.
func (r *jobRepo) List(ctx context.Context) ([]domain.Job, error) {
	keys, err := r.kv.Keys(ctx, jobKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("jobRepo.List: %w", err)
	}
	jobs := make([]domain.Job, 0, len(keys))
	for _, key := range keys {
		job, err := r.GetByID(ctx, strings.TrimPrefix(key, jobKeyPrefix))
		if err != nil {
			continue
		}
		jobs = append(jobs, *job)
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (r *jobRepo) RequestCancel(ctx context.Context, id string) error {
	if err := r.kv.Set(ctx, CancelKey(id), []byte("1"), r.ttl); err != nil {
		return fmt.Errorf("jobRepo.RequestCancel: %w", err)
	}
	return nil
}

func (r *jobRepo) CancelRequested(ctx context.Context, id string) (bool, error) {
	_, err := r.kv.Get(ctx, CancelKey(id))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("jobRepo.CancelRequested: %w", err)
	}
	return true, nil
}

func (r *jobRepo) put(ctx context.Context, job *domain.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	return r.kv.Set(ctx, JobKey(job.ID), raw, r.ttl)
}
