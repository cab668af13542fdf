package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

const (
	// ReminderName identifies the single recurring job of a watch.
	ReminderName = "TweetReminder"
	// StateKey holds the latest enriched batch; its presence means processing started.
	StateKey = "TweetData"
	// QueryKey holds a per-watch override of the configured query.
	QueryKey = "WatchQuery"
	// ActivatedKey is seeded on first activation.
	ActivatedKey = "ActivatedAt"

	DefaultDueTime = time.Minute
	DefaultPeriod  = 10 * time.Minute
)

// ErrAlreadyStarted is returned by StartProcessing when the watch is already running.
var ErrAlreadyStarted = errors.New("processing for this watch has already started")

// ErrInvalidQuery is returned by Configure for a query without an account.
var ErrInvalidQuery = errors.New("watch query requires an account")

// BatchEnricher produces the enriched batch of one tick.
type BatchEnricher interface {
	Enrich(ctx context.Context, account, query string) (domain.EnrichedBatch, error)
}

// WatchDeps wires a watch to its runtime-provided state and shared collaborators.
type WatchDeps struct {
	ID           string
	State        ports.StateStore
	Reminders    ports.ReminderRegistry
	Enricher     BatchEnricher
	Notifier     ports.Notifier
	DefaultQuery domain.WatchQuery
	DueTime      time.Duration
	Period       time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Watch monitors one account: it owns the TweetReminder schedule and the TweetData state.
// The hosting runtime serializes every call into a watch.
type Watch struct {
	id           string
	state        ports.StateStore
	reminders    ports.ReminderRegistry
	enricher     BatchEnricher
	notifier     ports.Notifier
	defaultQuery domain.WatchQuery
	dueTime      time.Duration
	period       time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewWatch constructs a watch entity.
func NewWatch(deps WatchDeps) *Watch {
	w := &Watch{
		id:           deps.ID,
		state:        deps.State,
		reminders:    deps.Reminders,
		enricher:     deps.Enricher,
		notifier:     deps.Notifier,
		defaultQuery: deps.DefaultQuery,
		dueTime:      deps.DueTime,
		period:       deps.Period,
		logger:       deps.Logger,
		now:          deps.Now,
	}
	if w.dueTime <= 0 {
		w.dueTime = DefaultDueTime
	}
	if w.period <= 0 {
		w.period = DefaultPeriod
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.defaultQuery.Account == "" {
		w.defaultQuery.Account = deps.ID
	}
	return w
}

// OnActivate seeds the activation marker. It never touches TweetData.
func (w *Watch) OnActivate(ctx context.Context) error {
	stamp, err := json.Marshal(w.now().UTC())
	if err != nil {
		return fmt.Errorf("marshal activation time: %w", err)
	}

	created, err := w.state.TryCreate(ctx, ActivatedKey, stamp)
	if err != nil {
		return fmt.Errorf("seed activation state: %w", err)
	}

	w.logger.Info("watch activated", "first_activation", created)
	return nil
}

// StartProcessing installs the recurring TweetReminder once. A second start returns
// ErrAlreadyStarted.
func (w *Watch) StartProcessing(ctx context.Context) error {
	_, found, err := w.reminders.Lookup(ctx, ReminderName)
	if err != nil {
		return fmt.Errorf("lookup reminder: %w", err)
	}

	if found {
		created, err := w.createStartMarker(ctx)
		if err != nil {
			return err
		}
		if !created {
			w.logger.Debug("start ignored, already started")
			return ErrAlreadyStarted
		}
		w.logger.Warn("reminder existed without start marker, marker repaired")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := w.reminders.Register(ctx, ReminderName, nil, w.dueTime, w.period); err != nil {
		return fmt.Errorf("register reminder: %w", err)
	}

	if _, err := w.createStartMarker(ctx); err != nil {
		return err
	}

	w.logger.Info("processing started", "due", w.dueTime.String(), "period", w.period.String())
	return nil
}

func (w *Watch) createStartMarker(ctx context.Context) (bool, error) {
	q, err := w.query(ctx)
	if err != nil {
		return false, err
	}

	empty := domain.EnrichedBatch{
		EntityID: w.id,
		Account:  q.Account,
		Query:    q.Query,
		Tweets:   []domain.EnrichedTweet{},
	}
	payload, err := json.Marshal(empty)
	if err != nil {
		return false, fmt.Errorf("marshal start marker: %w", err)
	}

	created, err := w.state.TryCreate(ctx, StateKey, payload)
	if err != nil {
		return false, fmt.Errorf("create start marker: %w", err)
	}
	return created, nil
}

// ReceiveReminder runs one processing turn: fetch, score, then replace TweetData.
// Reminders with other names are ignored.
func (w *Watch) ReceiveReminder(ctx context.Context, name string, _ []byte, _, _ time.Duration) error {
	if !strings.EqualFold(name, ReminderName) {
		w.logger.Debug("ignoring unknown reminder", "reminder", name)
		return nil
	}

	turnID := uuid.NewString()
	logger := w.logger.With("turn", turnID)

	q, err := w.query(ctx)
	if err != nil {
		return err
	}

	batch, err := w.enricher.Enrich(ctx, q.Account, q.Query)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", q.Account, err)
	}
	batch.EntityID = w.id

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	if err := w.state.Set(ctx, StateKey, payload); err != nil {
		return fmt.Errorf("persist batch: %w", err)
	}

	logger.Info("batch persisted",
		"account", q.Account,
		"tweets", len(batch.Tweets),
		"degraded", batch.Degraded())

	w.notify(ctx, logger, batch)
	return nil
}

func (w *Watch) notify(ctx context.Context, logger *slog.Logger, batch domain.EnrichedBatch) {
	if w.notifier == nil || len(batch.Tweets) == 0 {
		return
	}
	if err := w.notifier.PublishDigest(ctx, buildDigestMessage(batch)); err != nil {
		logger.Warn("digest not delivered", "error", err)
	}
}

// Configure overrides the query parameters used by subsequent turns.
func (w *Watch) Configure(ctx context.Context, q domain.WatchQuery) error {
	if strings.TrimSpace(q.Account) == "" {
		return fmt.Errorf("configure: %w", ErrInvalidQuery)
	}
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}
	if err := w.state.Set(ctx, QueryKey, payload); err != nil {
		return fmt.Errorf("persist query: %w", err)
	}
	return nil
}

// Snapshot returns the persisted batch; ok is false when processing never started.
func (w *Watch) Snapshot(ctx context.Context) (domain.EnrichedBatch, bool, error) {
	raw, ok, err := w.state.Get(ctx, StateKey)
	if err != nil {
		return domain.EnrichedBatch{}, false, fmt.Errorf("load batch: %w", err)
	}
	if !ok {
		return domain.EnrichedBatch{}, false, nil
	}

	var batch domain.EnrichedBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return domain.EnrichedBatch{}, false, fmt.Errorf("decode batch: %w", err)
	}
	return batch, true, nil
}

// Reminder returns the watch's registered TweetReminder, if any.
func (w *Watch) Reminder(ctx context.Context) (domain.Reminder, bool, error) {
	return w.reminders.Lookup(ctx, ReminderName)
}

func (w *Watch) query(ctx context.Context) (domain.WatchQuery, error) {
	raw, ok, err := w.state.Get(ctx, QueryKey)
	if err != nil {
		return domain.WatchQuery{}, fmt.Errorf("load query: %w", err)
	}
	if !ok {
		return w.defaultQuery, nil
	}

	var q domain.WatchQuery
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.WatchQuery{}, fmt.Errorf("decode query: %w", err)
	}
	return q, nil
}
