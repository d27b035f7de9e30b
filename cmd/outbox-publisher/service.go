package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maisonlocation/costume-rental-backend/pkg/config"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	"github.com/maisonlocation/costume-rental-backend/pkg/metrics"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 30 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(tx *gorm.DB) (int64, error)
}

type eventRouter interface {
	Route(models.OutboxEvent) (*registry.Message, error)
}

type ServiceParams struct {
	Config     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	Repository outboxRepository
	Router     eventRouter
	// Ping checks the broker before the loop starts.
	Ping      func(context.Context) error
	OpenTopic openTopicFunc
	Metrics   *metrics.OutboxMetrics
}

// Service relays committed outbox rows to Pub/Sub. Rows are locked with SKIP
// LOCKED, so several replicas can run side by side.
type Service struct {
	logg    *logger.Logger
	db      dbClient
	repo    outboxRepository
	router  eventRouter
	ping    func(context.Context) error
	topics  *topicSet
	metrics *metrics.OutboxMetrics

	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.Router == nil:
		return nil, errors.New("event router is required")
	case p.OpenTopic == nil:
		return nil, errors.New("topic opener is required")
	}
	s := &Service{
		logg:           p.Logger,
		db:             p.DB,
		repo:           p.Repository,
		router:         p.Router,
		ping:           p.Ping,
		topics:         newTopicSet(p.OpenTopic),
		metrics:        p.Metrics,
		batchSize:      orDefault(p.Config.BatchSize, defaultBatchSize),
		maxAttempts:    orDefault(p.Config.MaxAttempts, defaultMaxAttempts),
		pollInterval:   orDefault(p.Config.PollInterval, defaultPollInterval),
		publishTimeout: orDefault(p.Config.PublishTimeout, defaultPublishTimeout),
		now:            time.Now,
	}
	return s, nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// drainResult summarises one batch.
type drainResult struct {
	fetched   int
	published int
}

// Run relays until ctx is canceled. A full batch with progress is followed
// straight away by the next one; failures back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if s.ping != nil {
		if err := s.ping(ctx); err != nil {
			return fmt.Errorf("pubsub ping: %w", err)
		}
	}
	defer s.topics.stop()

	failures := 0
	for {
		res, err := s.drain(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := s.pollInterval
		switch {
		case err != nil:
			failures++
			wait = backoff(s.pollInterval, failures)
			s.logg.Error(s.logg.WithField(ctx, "retry_in_ms", wait.Milliseconds()), "outbox.batch_failed", err)
		case res.fetched == s.batchSize && res.published > 0:
			failures = 0
			continue
		default:
			failures = 0
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

type delivery struct {
	row    models.OutboxEvent
	msg    *registry.Message
	pub    topicPublisher
	result publishResult
}

// drain publishes one batch inside a transaction that holds the row locks
// until every outcome is written back.
func (s *Service) drain(ctx context.Context) (drainResult, error) {
	var res drainResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		res.fetched = len(rows)
		if len(rows) == 0 {
			if backlog, err := s.repo.CountPending(tx); err == nil {
				s.metrics.SetBacklog(backlog)
			}
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()

		// send the whole batch before waiting so Pub/Sub can batch it
		inflight := make([]delivery, 0, len(rows))
		for _, row := range rows {
			msg, err := s.router.Route(row)
			if err != nil {
				if err := s.park(ctx, tx, row, "", err); err != nil {
					return err
				}
				continue
			}
			pub, err := s.topics.get(msg.Topic)
			if err != nil {
				if err := s.retry(ctx, tx, row, msg, nil, err); err != nil {
					return err
				}
				continue
			}
			inflight = append(inflight, delivery{
				row:    row,
				msg:    msg,
				pub:    pub,
				result: pub.Publish(publishCtx, toPubSub(msg)),
			})
		}

		for _, d := range inflight {
			serverID, err := d.result.Get(publishCtx)
			if err != nil {
				if err := s.retry(ctx, tx, d.row, d.msg, d.pub, err); err != nil {
					return err
				}
				continue
			}
			if err := s.repo.MarkPublishedTx(tx, d.row.ID); err != nil {
				return fmt.Errorf("mark published %s: %w", d.row.ID, err)
			}
			res.published++
			s.metrics.Delivered(string(d.row.EventType), d.msg.Topic, metrics.OutboxPublished, s.now().Sub(d.row.CreatedAt))
			s.logg.Debug(s.logg.WithFields(ctx, rowFields(d.row, d.msg, map[string]any{"message_id": serverID})), "outbox.published")
		}
		return nil
	})
	return res, err
}

// retry records a failed attempt, or parks the row once it has used up its
// attempts. The ordering key is resumed so later events of the rental can
// go out on the next batch.
func (s *Service) retry(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, msg *registry.Message, pub topicPublisher, cause error) error {
	if pub != nil {
		pub.ResumePublish(msg.OrderingKey)
	}
	attempt := row.AttemptCount + 1
	if attempt >= s.maxAttempts {
		return s.park(ctx, tx, row, msg.Topic, fmt.Errorf("gave up after %d attempts: %w", attempt, cause))
	}
	s.logg.Warn(s.logg.WithFields(ctx, rowFields(row, msg, map[string]any{
		"attempt": attempt,
		"error":   cause.Error(),
	})), "outbox.publish_retry")
	s.metrics.Delivered(string(row.EventType), msg.Topic, metrics.OutboxRetry, 0)
	if err := s.repo.MarkFailedTx(tx, row.ID, cause); err != nil {
		return fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	return nil
}

// park sets the row to maxAttempts so the fetch query never returns it again.
// last_error stays on the row for an operator.
func (s *Service) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, topic string, cause error) error {
	s.logg.Error(s.logg.WithFields(ctx, rowFields(row, nil, map[string]any{"topic": topic})), "outbox.parked", cause)
	s.metrics.Delivered(string(row.EventType), topic, metrics.OutboxParked, 0)
	if err := s.repo.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	return nil
}

func toPubSub(msg *registry.Message) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.OrderingKey,
	}
}

func rowFields(row models.OutboxEvent, msg *registry.Message, extra map[string]any) map[string]any {
	fields := map[string]any{
		"outbox_id":  row.ID.String(),
		"event_type": row.EventType,
		"rental_id":  row.AggregateID,
	}
	if msg != nil {
		fields["topic"] = msg.Topic
		fields["event_id"] = msg.EventID
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

// backoff doubles base per consecutive failure up to maxBackoff and adds up
// to a quarter of jitter so replicas do not retry in step.
func backoff(base time.Duration, failures int) time.Duration {
	d := maxBackoff
	if failures < 16 {
		d = min(base<<failures, maxBackoff)
	}
	return d + rand.N(d/4+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
