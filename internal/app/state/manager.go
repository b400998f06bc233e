package state

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-tripwise/internal/app/favorites"
	"github.com/FACorreiaa/go-tripwise/internal/app/models"
	"github.com/FACorreiaa/go-tripwise/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-tripwise/internal/app/planning"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/auth"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/store"
)

// Local precondition failures, raised synchronously before any network call.
var (
	ErrNoActivePreference      = errors.New("no active preference: generate a plan before adding favorites")
	ErrPlanIndexOutOfRange     = errors.New("plan index out of range")
	ErrFavoriteIndexOutOfRange = errors.New("favorite index out of range")
)

// Snapshot is an immutable view of the manager's state. Consumers read
// snapshots and never mutate them; the element slices are fresh copies of the
// top level on every call.
type Snapshot struct {
	Preferences []models.Preference    `json:"preferences"`
	Plans       []models.GeneratedPlan `json:"plans"`
	Favorites   []models.Favorite      `json:"favorites"`
	Loading     bool                   `json:"loading"`
	LastError   string                 `json:"lastError,omitempty"`
	Version     uint64                 `json:"version"`
}

// Manager is the single source of truth for the active travel preference,
// its generated plans, and the accumulated favorites. All mutation funnels
// through its methods; the durable cache is exclusively owned by it.
type Manager struct {
	mu          sync.Mutex
	preferences []models.Preference
	plans       []models.GeneratedPlan
	favorites   []models.Favorite
	inFlight    int
	lastErr     string
	version     uint64
	seq         uint64 // fencing token for racing CreatePreference calls

	planning planning.Service
	favs     favorites.Service
	store    *store.Store
	creds    auth.CredentialProvider
	logger   *zap.Logger

	subMu       sync.Mutex
	nextSubID   int
	subscribers map[int]func(Snapshot)
}

func NewManager(planningSvc planning.Service, favoritesSvc favorites.Service, st *store.Store, creds auth.CredentialProvider, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		preferences: []models.Preference{},
		plans:       []models.GeneratedPlan{},
		favorites:   []models.Favorite{},
		planning:    planningSvc,
		favs:        favoritesSvc,
		store:       st,
		creds:       creds,
		logger:      logger,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Initialize hydrates state from the durable cache and, when a session
// credential is present, reconciles favorites with the server. The server's
// favorites fully replace the hydrated set on success; on failure the
// hydrated set stays and the error is recorded, never returned.
func (m *Manager) Initialize(ctx context.Context) {
	ctx, span := otel.Tracer("StateManager").Start(ctx, "Initialize")
	defer span.End()

	var (
		prefs []models.Preference
		plans []models.GeneratedPlan
		favs  []models.Favorite
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { prefs = m.store.LoadPreferences(); return nil })
	g.Go(func() error { plans = m.store.LoadPlans(); return nil })
	g.Go(func() error { favs = m.store.LoadFavorites(); return nil })
	_ = g.Wait()

	m.mu.Lock()
	m.preferences = prefs
	m.plans = plans
	m.favorites = favs
	m.version++
	m.mu.Unlock()
	m.notify()

	m.logger.Info("State hydrated from cache",
		zap.Int("preferences", len(prefs)),
		zap.Int("plans", len(plans)),
		zap.Int("favorites", len(favs)))

	if _, ok := m.creds.Token(); !ok {
		m.logger.Info("No session credential, skipping favorites reconciliation")
		span.SetStatus(codes.Ok, "hydrated unauthenticated")
		return
	}

	serverFavs, err := m.favs.List(ctx)
	if err != nil {
		m.logger.Warn("Favorites reconciliation failed, keeping cached favorites", zap.Error(err))
		m.setError(err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation failed")
		return
	}

	m.mu.Lock()
	if err := m.store.SaveFavorites(serverFavs); err != nil {
		m.logger.Warn("Failed to persist reconciled favorites", zap.Error(err))
	}
	m.favorites = serverFavs
	m.version++
	m.mu.Unlock()
	m.notify()

	span.SetAttributes(attribute.Int("favorites.count", len(serverFavs)))
	span.SetStatus(codes.Ok, "favorites reconciled")
}

// CreatePreference submits a preference to the planning service. On success
// the previous preference/plan session is fully replaced in memory and cache,
// atomically under the state lock; on any failure the prior state is left
// byte-for-byte intact and the classified error is returned.
//
// Racing calls are resolved by a fencing token: each call takes the next
// sequence number, and a response is applied only if its number is still the
// latest issued, so a slow stale response never clobbers a newer one.
func (m *Manager) CreatePreference(ctx context.Context, input models.CreatePreferenceInput) (*models.PlanningResponse, error) {
	ctx, span := otel.Tracer("StateManager").Start(ctx, "CreatePreference")
	defer span.End()

	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.inFlight++
	m.version++
	m.mu.Unlock()
	m.notify()

	resp, err := m.planning.CreatePreference(ctx, input)

	m.mu.Lock()
	m.inFlight--
	if err != nil {
		m.lastErr = err.Error()
		m.version++
		m.mu.Unlock()
		m.notify()
		m.countPreference(ctx, "failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "creation failed")
		return nil, err
	}

	if latest := m.seq; seq != latest {
		m.version++
		m.mu.Unlock()
		m.notify()
		metrics.Get().StaleResponsesTotal.Add(ctx, 1)
		m.logger.Warn("Dropping stale planning response",
			zap.Uint64("response_seq", seq),
			zap.Uint64("latest_seq", latest))
		span.SetStatus(codes.Ok, "stale response dropped")
		return resp, nil
	}

	newPrefs := []models.Preference{resp.Preference}
	newPlans := resp.Plans
	if newPlans == nil {
		newPlans = []models.GeneratedPlan{}
	}
	prevPrefs := m.preferences

	if err := m.store.SavePreferences(newPrefs); err != nil {
		m.lastErr = "failed to persist preference"
		m.version++
		m.mu.Unlock()
		m.notify()
		m.countPreference(ctx, "failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return nil, errors.Wrap(err, "failed to persist preference")
	}
	if err := m.store.SavePlans(newPlans); err != nil {
		// Restore the preference entry so the cache never pairs the new
		// preference with the old plan set.
		if restoreErr := m.store.SavePreferences(prevPrefs); restoreErr != nil {
			m.logger.Error("Failed to restore preference entry after plan persist failure", zap.Error(restoreErr))
		}
		m.lastErr = "failed to persist plans"
		m.version++
		m.mu.Unlock()
		m.notify()
		m.countPreference(ctx, "failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return nil, errors.Wrap(err, "failed to persist plans")
	}

	m.preferences = newPrefs
	m.plans = newPlans
	m.lastErr = ""
	m.version++
	m.mu.Unlock()
	m.notify()
	m.countPreference(ctx, "success")

	m.logger.Info("Preference session replaced",
		zap.Int64("preference_id", resp.Preference.ID),
		zap.Int("plans", len(newPlans)))
	span.SetAttributes(attribute.Int("plans.count", len(newPlans)))
	span.SetStatus(codes.Ok, "preference created")
	return resp, nil
}

// AddToFavorites bookmarks the plan at planIndex within the current plan set.
// It reports failure by return value: favorites mutations are best-effort UI
// actions and never raise. Preconditions fail synchronously with no network
// call.
func (m *Manager) AddToFavorites(ctx context.Context, planIndex int) bool {
	ctx, span := otel.Tracer("StateManager").Start(ctx, "AddToFavorites")
	defer span.End()
	span.SetAttributes(attribute.Int("plan.index", planIndex))

	m.mu.Lock()
	if len(m.preferences) == 0 {
		m.lastErr = ErrNoActivePreference.Error()
		m.version++
		m.mu.Unlock()
		m.notify()
		m.countFavorite(ctx, "add", "precondition")
		span.SetStatus(codes.Error, "no active preference")
		return false
	}
	if planIndex < 0 || planIndex >= len(m.plans) {
		m.lastErr = ErrPlanIndexOutOfRange.Error()
		m.version++
		m.mu.Unlock()
		m.notify()
		m.countFavorite(ctx, "add", "precondition")
		span.SetStatus(codes.Error, "plan index out of range")
		return false
	}
	preferenceID := m.preferences[0].ID
	plan := m.plans[planIndex]
	m.mu.Unlock()

	created, err := m.favs.Create(ctx, preferenceID, plan)
	if err != nil {
		m.setError(err.Error())
		m.countFavorite(ctx, "add", "failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "creation failed")
		return false
	}

	m.mu.Lock()
	newFavs := append(slices.Clone(m.favorites), *created)
	if err := m.store.SaveFavorites(newFavs); err != nil {
		m.lastErr = "failed to persist favorites"
		m.version++
		m.mu.Unlock()
		m.notify()
		m.countFavorite(ctx, "add", "failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return false
	}
	m.favorites = newFavs
	m.lastErr = ""
	m.version++
	m.mu.Unlock()
	m.notify()
	m.countFavorite(ctx, "add", "success")

	m.logger.Info("Favorite added",
		zap.Int64("favorite_id", created.ID),
		zap.Int64("preference_id", preferenceID))
	span.SetStatus(codes.Ok, "favorite added")
	return true
}

// RemoveFromFavorites deletes the favorite at localIndex within the live
// in-memory sequence. The server identifier is resolved from memory, not
// from the persisted cache, so an in-flight mutation can never redirect the
// delete to the wrong record.
func (m *Manager) RemoveFromFavorites(ctx context.Context, localIndex int) bool {
	ctx, span := otel.Tracer("StateManager").Start(ctx, "RemoveFromFavorites")
	defer span.End()
	span.SetAttributes(attribute.Int("favorite.index", localIndex))

	m.mu.Lock()
	if localIndex < 0 || localIndex >= len(m.favorites) {
		m.lastErr = ErrFavoriteIndexOutOfRange.Error()
		m.version++
		m.mu.Unlock()
		m.notify()
		m.countFavorite(ctx, "remove", "precondition")
		span.SetStatus(codes.Error, "favorite index out of range")
		return false
	}
	target := m.favorites[localIndex]
	m.mu.Unlock()

	if err := m.favs.Delete(ctx, target.ID); err != nil {
		m.setError(err.Error())
		m.countFavorite(ctx, "remove", "failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "deletion failed")
		return false
	}

	m.mu.Lock()
	// The position may have shifted while the delete was in flight; resolve
	// by server identifier.
	idx := slices.IndexFunc(m.favorites, func(f models.Favorite) bool { return f.ID == target.ID })
	if idx >= 0 {
		newFavs := slices.Delete(slices.Clone(m.favorites), idx, idx+1)
		if err := m.store.SaveFavorites(newFavs); err != nil {
			m.lastErr = "failed to persist favorites"
			m.version++
			m.mu.Unlock()
			m.notify()
			m.countFavorite(ctx, "remove", "failure")
			span.RecordError(err)
			span.SetStatus(codes.Error, "persistence failed")
			return false
		}
		m.favorites = newFavs
	}
	m.lastErr = ""
	m.version++
	m.mu.Unlock()
	m.notify()
	m.countFavorite(ctx, "remove", "success")

	m.logger.Info("Favorite removed", zap.Int64("favorite_id", target.ID))
	span.SetStatus(codes.Ok, "favorite removed")
	return true
}

// IsFavorited reports whether the plan at planIndex is already bookmarked.
// A favorite only stores the owning preference identifier, not a plan
// position, so the match is the owning preference plus snapshot equality of
// the embedded plan.
func (m *Manager) IsFavorited(planIndex int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.preferences) == 0 || planIndex < 0 || planIndex >= len(m.plans) {
		return false
	}
	preferenceID := m.preferences[0].ID
	plan := m.plans[planIndex]
	for _, f := range m.favorites {
		if f.PreferenceID == preferenceID && reflect.DeepEqual(f.Plan, plan) {
			return true
		}
	}
	return false
}

// Snapshot returns an immutable view of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Preferences: slices.Clone(m.preferences),
		Plans:       slices.Clone(m.plans),
		Favorites:   slices.Clone(m.favorites),
		Loading:     m.inFlight > 0,
		LastError:   m.lastErr,
		Version:     m.version,
	}
}

// Subscribe registers a change listener and returns its unsubscribe func.
// Listeners are invoked with a fresh snapshot after every applied mutation,
// outside the state lock.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subscribers, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify() {
	snap := m.Snapshot()
	m.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Manager) setError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.version++
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) countPreference(ctx context.Context, outcome string) {
	metrics.Get().PreferenceCreationsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Manager) countFavorite(ctx context.Context, op, outcome string) {
	metrics.Get().FavoriteMutationsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome)))
}
