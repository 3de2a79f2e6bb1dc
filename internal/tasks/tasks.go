// package tasks runs resyncs of the state mirror against the REST backend.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tunesync/internal/mirror"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// DefaultInterval is the minimum spacing between two resyncs of one channel.
const DefaultInterval = 2 * time.Second

// SnapshotCache persists snapshots for warm starts. repositories.SnapshotRepository implements it.
type SnapshotCache interface {
	Save(ctx context.Context, snap *models.Snapshot) error
}

// SyncJournal records completed resyncs. repositories.SyncStateRepository implements it.
type SyncJournal interface {
	Record(ctx context.Context, userID string, report *mirror.ResyncReport) error
}

// EngineOptions configures a [SyncEngine].
type EngineOptions struct {
	Interval time.Duration
	Cache    SnapshotCache
	Journal  SyncJournal
	Logger   *log.Logger
}

// SyncEngine resyncs the mirror channel by channel.
//
// Concurrent requests for the same channel share one run, and runs of one channel are spaced by the interval so a
// flapping connection cannot flood the backend.
type SyncEngine struct {
	store    *mirror.Store
	source   mirror.Source
	cache    SnapshotCache
	journal  SyncJournal
	interval time.Duration
	logger   *log.Logger

	// runs are shared between callers, so they run on the engine's context rather than any one caller's
	ctx    context.Context
	cancel context.CancelFunc

	group    singleflight.Group
	mu       sync.Mutex
	limiters map[models.Channel]*rate.Limiter
}

// NewSyncEngine creates a [SyncEngine] resyncing store from source.
func NewSyncEngine(store *mirror.Store, source mirror.Source, opts EngineOptions) *SyncEngine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncEngine{
		ctx:      ctx,
		cancel:   cancel,
		store:    store,
		source:   source,
		cache:    opts.Cache,
		journal:  opts.Journal,
		interval: opts.Interval,
		logger:   shared.WithLogger(opts.Logger, "component", "sync"),
		limiters: make(map[models.Channel]*rate.Limiter),
	}
}

// progressSink forwards updates to one caller's progress channel until that caller stops waiting.
type progressSink struct {
	mu sync.Mutex
	ch chan<- ProgressUpdate
}

// send forwards update without blocking.
func (p *progressSink) send(update ProgressUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return
	}
	select {
	case p.ch <- update:
	default:
	}
}

// detach drops the channel so a run outliving its caller never sends on a channel the caller may close.
func (p *progressSink) detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch = nil
}

// Close cancels runs still in flight. Resyncs fail once the engine is closed.
func (e *SyncEngine) Close() {
	e.cancel()
}

func (e *SyncEngine) limiter(ch models.Channel) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[ch]
	if !ok {
		l = rate.NewLimiter(rate.Every(e.interval), 1)
		e.limiters[ch] = l
	}
	return l
}

// Resync refetches one channel. Callers arriving while a resync of ch is running get its result.
func (e *SyncEngine) Resync(ctx context.Context, ch models.Channel, progress chan<- ProgressUpdate) (*mirror.ResyncReport, error) {
	return e.resync(ctx, ch, 1, 1, progress)
}

func (e *SyncEngine) resync(ctx context.Context, ch models.Channel, step, total int, progress chan<- ProgressUpdate) (*mirror.ResyncReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("tasks.Resync: %w", err)
	}
	sink := &progressSink{ch: progress}
	defer sink.detach()

	results := e.group.DoChan(string(ch), func() (any, error) {
		return e.run(e.ctx, ch, step, total, sink)
	})
	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*mirror.ResyncReport), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("tasks.Resync: %w", ctx.Err())
	}
}

func (e *SyncEngine) run(ctx context.Context, ch models.Channel, step, total int, progress *progressSink) (*mirror.ResyncReport, error) {
	limiter := e.limiter(ch)
	if !limiter.Allow() {
		progress.send(throttleUpdate(step, total, ch))
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("tasks.Resync: %w", err)
		}
	}

	progress.send(fetchUpdate(step, total, ch))
	report, err := e.store.Resync(ctx, ch, e.source)
	if err != nil {
		progress.send(failedUpdate(step, total, ch, err))
		return nil, err
	}
	progress.send(reconcileUpdate(step, total, report))
	e.logger.Debug("resynced", "channel", ch, "fetched", report.Fetched, "changed", report.Changed, "stale", len(report.Stale))

	if e.journal != nil {
		if err := e.journal.Record(ctx, e.store.UserID(), report); err != nil {
			e.logger.Warn("failed to record resync", "error", err)
		}
	}
	if e.cache != nil && report.Changed {
		progress.send(cacheUpdate(step, total, ch))
		if err := e.cache.Save(ctx, e.store.Read()); err != nil {
			e.logger.Warn("failed to cache snapshot", "error", err)
		}
	}
	return report, nil
}

// ResyncAll resyncs each channel in order. Every channel is attempted; the errors are joined.
func (e *SyncEngine) ResyncAll(ctx context.Context, channels []models.Channel, progress chan<- ProgressUpdate) ([]*mirror.ResyncReport, error) {
	var (
		reports []*mirror.ResyncReport
		errs    []error
	)
	for i, ch := range channels {
		report, err := e.resync(ctx, ch, i+1, len(channels), progress)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}
