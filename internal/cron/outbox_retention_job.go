package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
)

const defaultOutboxRetention = 30 * 24 * time.Hour

// sweepMarkers outlive retention: pruning an overdue row would make the sweep
// flag the rental again.
func sweepMarkers() []enums.OutboxEventType {
	var keep []enums.OutboxEventType
	for _, e := range enums.OutboxEventTypes() {
		if e.SweepMarker() {
			keep = append(keep, e)
		}
	}
	return keep
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, keep ...enums.OutboxEventType) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	Retention  time.Duration
}

// outboxRetentionJob deletes published rental events older than retention.
type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	pruner    outboxPruner
	retention time.Duration
	now       func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		pruner:    params.Repository,
		retention: params.Retention,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var pruned int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		pruned, err = j.pruner.DeletePublishedBefore(tx, cutoff, sweepMarkers()...)
		return err
	}); err != nil {
		return fmt.Errorf("prune outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"pruned": pruned,
	}), "cron.outbox_pruned")
	return nil
}
