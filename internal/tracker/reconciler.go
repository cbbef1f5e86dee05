package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"encar-telegram-bot/internal/catalog"
	"encar-telegram-bot/internal/rates"
	"encar-telegram-bot/internal/types"
)

const (
	// notifyDelay paces per-listing notifications so one sweep with many new
	// listings does not hit the messenger's flood limits.
	notifyDelay = 10 * time.Second
	// errorDelay keeps a run of consecutive failed announcements from
	// hammering the detail endpoint back to back.
	errorDelay = time.Second
)

var (
	sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "encar",
		Subsystem: "tracker",
		Name:      "sweeps_total",
		Help:      "The total number of completed tracking sweeps",
	})
	newListings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "encar",
		Subsystem: "tracker",
		Name:      "new_listings_total",
		Help:      "The total number of newly discovered listings",
	})
)

// Searcher is the catalog surface the reconciler needs. The production
// implementation is catalog.Client; Search returns nil on any failure.
type Searcher interface {
	Search(ctx context.Context, action string, offset int) *types.SearchPage
	FetchDetail(ctx context.Context, carID int64) (*types.CarInfo, error)
}

// Store is the persistence surface of a sweep.
type Store interface {
	AllTrackings() ([]*types.Tracking, error)
	UpdateCarIDs(trackID int64, carIDs []int64) error
	ActivateTracking(trackID int64) error
	ConfigurationAction(configurationID int64) (string, error)
}

// Notifier delivers a new-listing event to the tracking's owner and mirrors
// it to the operations channel.
type Notifier interface {
	NotifyNewCar(ctx context.Context, track *types.Tracking, car *types.CarInfo) error
}

// Reconciler periodically compares each saved search against the live
// catalog. A package-level style mutex keeps sweeps exclusive: when a sweep
// is still running at the next tick, the tick is skipped.
type Reconciler struct {
	mu       sync.Mutex
	catalog  Searcher
	store    Store
	notifier Notifier
	delay    time.Duration
	errDelay time.Duration
	wait     func(ctx context.Context, d time.Duration)
}

func New(searcher Searcher, store Store, notifier Notifier) *Reconciler {
	return &Reconciler{
		catalog:  searcher,
		store:    store,
		notifier: notifier,
		delay:    notifyDelay,
		errDelay: errorDelay,
		wait:     waitFor,
	}
}

// Sweep walks all trackings once. Per-tracking failures are logged and do not
// stop the sweep.
func (r *Reconciler) Sweep(ctx context.Context) {
	if !r.mu.TryLock() {
		log.Info("⏭ Previous tracking sweep still running, skipping")
		return
	}
	defer r.mu.Unlock()

	log.Info("🔄 Starting tracking sweep...")

	trackings, err := r.store.AllTrackings()
	if err != nil {
		log.Errorf("❌ Could not load trackings: %v", err)
		return
	}

	for _, track := range trackings {
		if err := r.reconcile(ctx, track); err != nil {
			log.Errorf("❌ Tracking %d failed: %v", track.ID, err)
		}
		if ctx.Err() != nil {
			return
		}
	}

	sweepRuns.Inc()
	log.Infof("✅ Tracking sweep completed, %d trackings checked", len(trackings))
}

// reconcile handles one tracking. A tracking that has never been swept is
// seeded with the current result set and activated without notifications, so
// pre-existing listings are not announced as new.
func (r *Reconciler) reconcile(ctx context.Context, track *types.Tracking) error {
	action, err := r.store.ConfigurationAction(track.Filter.ConfigurationID)
	if err != nil {
		return err
	}
	action = catalog.BuildAction(action, track.Filter, rates.Current().KRW)

	currentIDs := r.collectIDs(ctx, action)

	if !track.IsActive {
		if err := r.store.UpdateCarIDs(track.ID, currentIDs); err != nil {
			return err
		}
		log.Infof("Tracking %d seeded with %d listings", track.ID, len(currentIDs))
		return r.store.ActivateTracking(track.ID)
	}

	known := track.KnownSet()
	for _, id := range currentIDs {
		if _, ok := known[id]; ok {
			continue
		}
		newListings.Inc()
		log.Infof("🚗 New listing %d for tracking %d", id, track.ID)
		r.announce(ctx, track, id)
	}

	return r.store.UpdateCarIDs(track.ID, mergeIDs(track.CarIDs, currentIDs))
}

// announce fetches the listing detail and notifies the owner. Failures are
// logged only: the id is still recorded as seen, one broken detail page must
// not wedge the tracking into re-announcing forever. The failure path still
// pauses so consecutive broken listings do not hit the detail endpoint back
// to back.
func (r *Reconciler) announce(ctx context.Context, track *types.Tracking, carID int64) {
	car, err := r.catalog.FetchDetail(ctx, carID)
	if err != nil {
		log.Errorf("❌ Could not fetch detail of listing %d: %v", carID, err)
		r.wait(ctx, r.errDelay)
		return
	}
	if err := r.notifier.NotifyNewCar(ctx, track, car); err != nil {
		log.Errorf("❌ Could not notify user %d about listing %d: %v", track.UserID, carID, err)
		r.wait(ctx, r.errDelay)
		return
	}

	r.wait(ctx, r.delay)
}

// waitFor sleeps for d unless the context ends first.
func waitFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// collectIDs pages through the search results in server order and returns
// every listing id. A nil page (transport failure) or an empty page ends the
// walk with what was collected so far.
func (r *Reconciler) collectIDs(ctx context.Context, action string) []int64 {
	var ids []int64
	offset := 0
	for {
		page := r.catalog.Search(ctx, action, offset)
		offset += catalog.PageSize

		if page == nil || len(page.Results) == 0 {
			return ids
		}
		for _, result := range page.Results {
			if id := result.NumericID(); id != 0 {
				ids = append(ids, id)
			}
		}
		if page.Count < int64(offset) {
			return ids
		}
	}
}

// mergeIDs unions known and current ids, preserving first-seen order.
func mergeIDs(known, current []int64) []int64 {
	seen := make(map[int64]struct{}, len(known)+len(current))
	merged := make([]int64, 0, len(known)+len(current))
	for _, id := range known {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	for _, id := range current {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	return merged
}
