package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/etaoni/qci"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollingInterval    = 30 * time.Second
	defaultWatcherConcurrency = 3
)

// ErrWatcherClosed is returned by Watch after Shutdown was called.
var ErrWatcherClosed = errors.New("ledger: Watcher closed")

// TokenFunc returns the access token used for one polling round.
type TokenFunc func(ctx context.Context) (string, error)

// WatcherOptions contains configuration options for a Watcher.
type WatcherOptions struct {
	// PollingInterval is the time between two polling rounds.
	PollingInterval time.Duration
	// Concurrency is the number of status requests in flight at the same time.
	Concurrency int
	// Size is the number of ledger items evaluated per Scan page.
	Size int32
	// Logger receives failures of single entries. Defaults to a logger that discards everything.
	Logger *slog.Logger
	// OnUpdate is called with every entry whose status was refreshed. Calls are serialized.
	OnUpdate func(*Entry)
	// OnShutdown is a slice of functions called when the Watcher is shutting down.
	OnShutdown []func()
}

// WithPollingInterval sets the time between two polling rounds.
func WithPollingInterval(pollingInterval time.Duration) func(o *WatcherOptions) {
	return func(o *WatcherOptions) {
		o.PollingInterval = pollingInterval
	}
}

// WithConcurrency sets the number of status requests in flight at the same time.
func WithConcurrency(concurrency int) func(o *WatcherOptions) {
	return func(o *WatcherOptions) {
		o.Concurrency = concurrency
	}
}

// WithSize sets the number of ledger items evaluated per Scan page.
func WithSize(size int32) func(o *WatcherOptions) {
	return func(o *WatcherOptions) {
		o.Size = size
	}
}

func WithLogger(logger *slog.Logger) func(o *WatcherOptions) {
	return func(o *WatcherOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithOnUpdate(onUpdate func(*Entry)) func(o *WatcherOptions) {
	return func(o *WatcherOptions) {
		o.OnUpdate = onUpdate
	}
}

func WithOnShutdown(onShutdown []func()) func(o *WatcherOptions) {
	return func(o *WatcherOptions) {
		o.OnShutdown = onShutdown
	}
}

// NewWatcher creates a Watcher that refreshes the recorded submissions through client.
func NewWatcher(client qci.Client, store Store, token TokenFunc, opts ...func(o *WatcherOptions)) *Watcher {
	o := &WatcherOptions{
		PollingInterval: defaultPollingInterval,
		Concurrency:     defaultWatcherConcurrency,
		Size:            DefaultMaxListEntries,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultWatcherConcurrency
	}
	return &Watcher{
		client:          client,
		store:           store,
		token:           token,
		pollingInterval: o.PollingInterval,
		concurrency:     o.Concurrency,
		size:            o.Size,
		logger:          o.Logger,
		onUpdate:        o.OnUpdate,
		onShutdown:      o.OnShutdown,
		doneChan:        make(chan struct{}),
	}
}

// Watcher polls QCI for the status of every unfinished submission in the ledger and records the changes.
// Note: To create a new instance of Watcher, it is necessary to use the NewWatcher function.
type Watcher struct {
	client          qci.Client
	store           Store
	token           TokenFunc
	pollingInterval time.Duration
	concurrency     int
	size            int32
	logger          *slog.Logger
	onUpdate        func(*Entry)
	onShutdown      []func()

	inShutdown int32
	mu         sync.Mutex
	activeWG   sync.WaitGroup
	doneChan   chan struct{}
}

// Watch polls until every listed submission is finished, ctx is done or Shutdown is called.
// Failures of single submissions are logged and retried in the next round.
func (w *Watcher) Watch(ctx context.Context) error {
	for {
		if w.shuttingDown() {
			return ErrWatcherClosed
		}
		pending, err := w.pending(ctx)
		switch {
		case err != nil && !isTemporary(err):
			return fmt.Errorf("ledger: failed to list entries: %w", err)
		case err != nil:
			w.logger.Warn("failed to list ledger entries", "error", err)
		case len(pending) == 0:
			return nil
		default:
			if err := w.refresh(ctx, pending); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.doneChan:
			return ErrWatcherClosed
		case <-time.After(w.pollingInterval):
		}
	}
}

func (w *Watcher) pending(ctx context.Context) ([]*Entry, error) {
	out, err := w.store.ListUnfinished(ctx, &ListUnfinishedInput{PageSize: w.size})
	if err != nil {
		return nil, err
	}
	var pending []*Entry
	for _, e := range out.Entries {
		if !e.Finished() {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (w *Watcher) refresh(ctx context.Context, entries []*Entry) error {
	w.mu.Lock()
	if w.shuttingDown() {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.activeWG.Add(1)
	w.mu.Unlock()
	defer w.activeWG.Done()

	token, err := w.token(ctx)
	if err != nil {
		return fmt.Errorf("ledger: failed to get an access token: %w", err)
	}
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			w.refreshEntry(ctx, token, e)
			return nil
		})
	}
	return g.Wait()
}

func (w *Watcher) refreshEntry(ctx context.Context, token string, e *Entry) {
	logger := w.logger.With("id", e.ID, "accession_id", e.AccessionID)
	status, err := w.client.GetSubmissionStatus(ctx, &qci.GetSubmissionStatusInput{
		AccessToken: token,
		ID:          e.ID,
	})
	if err != nil {
		logger.Warn("failed to get submission status", "error", err)
		return
	}
	if status == nil || status.Status == nil {
		logger.Warn("submission status was empty")
		return
	}
	if status.Status.Status == e.Status && status.Status.PercentageComplete == e.PercentageComplete {
		return
	}
	updated, err := w.store.UpdateStatus(ctx, &UpdateStatusInput{ID: e.ID, Status: status.Status})
	if err != nil {
		logger.Warn("failed to update ledger entry", "error", err)
		return
	}
	if updated == nil || updated.Entry == nil {
		return
	}
	logger.Info("submission status changed", "status", updated.Entry.Status, "percentage_complete", updated.Entry.PercentageComplete)
	if w.onUpdate != nil {
		w.mu.Lock()
		w.onUpdate(updated.Entry)
		w.mu.Unlock()
	}
}

func (w *Watcher) shuttingDown() bool {
	return atomic.LoadInt32(&w.inShutdown) != 0
}

// Shutdown stops the Watcher after the current round and runs the registered shutdown callbacks.
func (w *Watcher) Shutdown(ctx context.Context) error {
	atomic.StoreInt32(&w.inShutdown, 1)

	w.mu.Lock()
	w.closeDoneChanLocked()
	for _, f := range w.onShutdown {
		go f()
	}
	w.mu.Unlock()

	finished := make(chan struct{}, 1)
	go func() {
		w.activeWG.Wait()
		finished <- struct{}{}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-finished:
		return nil
	}
}

func (w *Watcher) closeDoneChanLocked() {
	select {
	case <-w.doneChan:
	default:
		close(w.doneChan)
	}
}

func isTemporary(err error) bool {
	var (
		conditionalCheckFailedError *ConditionalCheckFailedError
		dynamoDBAPIError            DynamoDBAPIError
		transportError              qci.TransportError
	)
	switch {
	case errors.As(err, &conditionalCheckFailedError),
		errors.As(err, &dynamoDBAPIError),
		errors.As(err, &transportError):
		return true
	default:
		return false
	}
}
