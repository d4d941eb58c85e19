package catapi

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshInterval = 6 * time.Hour
	DefaultLoadTimeout     = 30 * time.Second
)

// Snapshot is a point-in-time copy of the valid breed names.
type Snapshot struct {
	Names     []string  `json:"names"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SnapshotStore keeps a snapshot outside the process so that replicas can share it.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

type RefreshObserver interface {
	ObserveRefresh(success bool, size int)
}

type Status struct {
	Loaded    bool      `json:"loaded"`
	Size      int       `json:"size"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

type breedSet struct {
	names     map[string]struct{}
	fetchedAt time.Time
}

// Directory validates breed names against a cached snapshot of the remote breed list.
// The snapshot is replaced atomically, so readers never need a lock.
type Directory struct {
	fetcher  BreedFetcher
	store    SnapshotStore
	observer RefreshObserver
	logger   *slog.Logger
	interval time.Duration
	// loadTimeout bounds the shared first load, which outlives any single caller.
	loadTimeout time.Duration
	now         func() time.Time

	current atomic.Pointer[breedSet]
	group   singleflight.Group
}

type DirectoryOption func(*Directory)

func WithSnapshotStore(store SnapshotStore) DirectoryOption {
	return func(d *Directory) { d.store = store }
}

func WithRefreshObserver(observer RefreshObserver) DirectoryOption {
	return func(d *Directory) { d.observer = observer }
}

func WithLogger(logger *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithRefreshInterval(interval time.Duration) DirectoryOption {
	return func(d *Directory) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

func WithLoadTimeout(timeout time.Duration) DirectoryOption {
	return func(d *Directory) {
		if timeout > 0 {
			d.loadTimeout = timeout
		}
	}
}

func NewDirectory(fetcher BreedFetcher, opts ...DirectoryOption) *Directory {
	d := &Directory{
		fetcher:  fetcher,
		logger:   slog.Default(),
		interval:    DefaultRefreshInterval,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "breed_directory")
	return d
}

// IsValid loads the snapshot on first use and checks membership.
// It fails with ErrUnavailable while no snapshot could be obtained yet.
func (d *Directory) IsValid(ctx context.Context, name string) (bool, error) {
	set, err := d.ensureLoaded(ctx)
	if err != nil {
		return false, err
	}
	_, ok := set.names[name]
	return ok, nil
}

func (d *Directory) ensureLoaded(ctx context.Context) (*breedSet, error) {
	if set := d.current.Load(); set != nil {
		return set, nil
	}
	// every waiter shares this load, so the first caller's cancellation must not fail the rest
	v, err, _ := d.group.Do("load", func() (any, error) {
		if set := d.current.Load(); set != nil {
			return set, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.loadTimeout)
		defer cancel()
		if set := d.loadFromStore(loadCtx); set != nil {
			return set, nil
		}
		return d.refresh(loadCtx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v.(*breedSet), nil
}

func (d *Directory) loadFromStore(ctx context.Context) *breedSet {
	if d.store == nil {
		return nil
	}
	snapshot, ok, err := d.store.Load(ctx)
	if err != nil {
		d.logger.Warn("failed to load breed snapshot from store", "error", err)
		return nil
	}
	if !ok || len(snapshot.Names) == 0 {
		return nil
	}
	set := newBreedSet(snapshot)
	d.current.Store(set)
	d.logger.Info("breed snapshot loaded from store", "size", len(set.names), "fetched_at", snapshot.FetchedAt)
	return set
}

// Refresh fetches the breed list and replaces the snapshot. On failure the
// previous snapshot stays in place.
func (d *Directory) Refresh(ctx context.Context) error {
	_, err := d.refresh(ctx)
	return err
}

func (d *Directory) refresh(ctx context.Context) (*breedSet, error) {
	breeds, err := d.fetcher.FetchBreeds(ctx)
	if err != nil {
		d.observe(false)
		return nil, fmt.Errorf("failed to fetch breeds: %w", err)
	}

	snapshot := Snapshot{
		Names:     make([]string, 0, len(breeds)),
		FetchedAt: d.now().UTC(),
	}
	for _, b := range breeds {
		if b.Name != "" {
			snapshot.Names = append(snapshot.Names, b.Name)
		}
	}
	set := newBreedSet(snapshot)
	d.current.Store(set)
	d.observe(true)

	if d.store != nil {
		if err := d.store.Save(ctx, snapshot); err != nil {
			d.logger.Warn("failed to save breed snapshot", "error", err)
		}
	}
	return set, nil
}

// Run refreshes the snapshot every interval until ctx is done.
func (d *Directory) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("stopping breed refresher")
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.logger.Warn("breed refresh failed, keeping last snapshot", "error", err)
				continue
			}
			d.logger.Info("breed snapshot refreshed", "size", d.Status().Size)
		}
	}
}

func (d *Directory) Status() Status {
	set := d.current.Load()
	if set == nil {
		return Status{}
	}
	return Status{
		Loaded:    true,
		Size:      len(set.names),
		FetchedAt: set.fetchedAt,
	}
}

func (d *Directory) observe(success bool) {
	if d.observer != nil {
		d.observer.ObserveRefresh(success, d.Status().Size)
	}
}

func newBreedSet(snapshot Snapshot) *breedSet {
	names := make(map[string]struct{}, len(snapshot.Names))
	for _, name := range snapshot.Names {
		names[name] = struct{}{}
	}
	return &breedSet{names: names, fetchedAt: snapshot.FetchedAt}
}
