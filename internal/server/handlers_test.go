package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tripwise/internal/app/favorites"
	"github.com/FACorreiaa/go-tripwise/internal/app/models"
	"github.com/FACorreiaa/go-tripwise/internal/app/planning"
	"github.com/FACorreiaa/go-tripwise/internal/app/state"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/auth"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/store"
)

type fakePlanning struct {
	resp *models.PlanningResponse
	err  error
}

func (f *fakePlanning) CreatePreference(ctx context.Context, input models.CreatePreferenceInput) (*models.PlanningResponse, error) {
	return f.resp, f.err
}

type fakeFavorites struct {
	created *models.Favorite
	err     error
}

func (f *fakeFavorites) List(ctx context.Context) ([]models.Favorite, error) {
	return []models.Favorite{}, nil
}

func (f *fakeFavorites) Create(ctx context.Context, preferenceID int64, plan models.GeneratedPlan) (*models.Favorite, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.created != nil {
		return f.created, nil
	}
	return &models.Favorite{ID: 1, PreferenceID: preferenceID, Plan: plan}, nil
}

func (f *fakeFavorites) Delete(ctx context.Context, favoriteID int64) error {
	return f.err
}

type fakeCities struct {
	catalog []models.City
	err     error
}

func (f *fakeCities) AvailableCities(ctx context.Context) ([]models.City, error) {
	return f.catalog, f.err
}

func newTestRouter(t *testing.T, p *fakePlanning, f *fakeFavorites, c *fakeCities) (*gin.Engine, *state.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.New(t.TempDir(), zap.NewNop())
	manager := state.NewManager(p, f, st, auth.StaticProvider{}, zap.NewNop())
	return SetupRouter(manager, c, zap.NewNop()), manager
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validPreferenceBody = `{
	"lieuDepart": "Casablanca",
	"cities": ["Marrakech", "Fes"],
	"dateDepart": "2026-09-01",
	"dateRetour": "2026-09-07",
	"budget": 5000
}`

func TestGetStateEmpty(t *testing.T) {
	r, _ := newTestRouter(t, &fakePlanning{}, &fakeFavorites{}, &fakeCities{})

	w := do(r, http.MethodGet, "/api/v1/state", "")

	require.Equal(t, http.StatusOK, w.Code)
	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Empty(t, snap.Preferences)
	assert.Empty(t, snap.Favorites)
	assert.False(t, snap.Loading)
}

func TestCreatePreferenceSuccess(t *testing.T) {
	p := &fakePlanning{resp: &models.PlanningResponse{
		Message:    "Preference created successfully",
		Preference: models.Preference{ID: 9, Budget: 5000},
		Plans:      []models.GeneratedPlan{{TotalCost: 4800}},
	}}
	r, manager := newTestRouter(t, p, &fakeFavorites{}, &fakeCities{})

	w := do(r, http.MethodPost, "/api/v1/preferences", validPreferenceBody)

	require.Equal(t, http.StatusCreated, w.Code)
	snap := manager.Snapshot()
	require.Len(t, snap.Preferences, 1)
	assert.Equal(t, int64(9), snap.Preferences[0].ID)
}

func TestCreatePreferenceMissingFields(t *testing.T) {
	r, _ := newTestRouter(t, &fakePlanning{}, &fakeFavorites{}, &fakeCities{})

	w := do(r, http.MethodPost, "/api/v1/preferences", `{"lieuDepart": "Casablanca"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePreferenceErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{
			name:       "transport maps to bad gateway",
			err:        &planning.Error{Kind: planning.KindTransport, Message: "no response from server"},
			wantStatus: http.StatusBadGateway,
			wantKind:   "transport",
		},
		{
			name:       "budget shortfall maps to unprocessable",
			err:        &planning.Error{Kind: planning.KindBudget, Status: 422, Message: "Insufficient budget"},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "budget",
		},
		{
			name:       "validation keeps server status",
			err:        &planning.Error{Kind: planning.KindValidation, Status: 409, Message: "dates overlap"},
			wantStatus: http.StatusConflict,
			wantKind:   "validation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, &fakePlanning{err: tt.err}, &fakeFavorites{}, &fakeCities{})

			w := do(r, http.MethodPost, "/api/v1/preferences", validPreferenceBody)

			require.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["message"])
			assert.Equal(t, tt.wantKind, body["kind"])
		})
	}
}

func TestAddFavoriteWithoutPreference(t *testing.T) {
	r, _ := newTestRouter(t, &fakePlanning{}, &fakeFavorites{}, &fakeCities{})

	w := do(r, http.MethodPost, "/api/v1/favorites", `{"planIndex": 0}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "no active preference")
}

func TestAddThenRemoveFavorite(t *testing.T) {
	p := &fakePlanning{resp: &models.PlanningResponse{
		Preference: models.Preference{ID: 3},
		Plans:      []models.GeneratedPlan{{TotalCost: 2500}},
	}}
	r, manager := newTestRouter(t, p, &fakeFavorites{}, &fakeCities{})

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/v1/preferences", validPreferenceBody).Code)

	w := do(r, http.MethodPost, "/api/v1/favorites", `{"planIndex": 0}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, manager.Snapshot().Favorites, 1)

	w = do(r, http.MethodDelete, "/api/v1/favorites/0", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, manager.Snapshot().Favorites)
}

func TestRemoveFavoriteInvalidIndex(t *testing.T) {
	r, _ := newTestRouter(t, &fakePlanning{}, &fakeFavorites{}, &fakeCities{})

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/api/v1/favorites/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/api/v1/favorites/5", "").Code)
}

func TestListCities(t *testing.T) {
	c := &fakeCities{catalog: []models.City{{ID: 1, Name: "Marrakech", Budget: 2000}}}
	r, _ := newTestRouter(t, &fakePlanning{}, &fakeFavorites{}, c)

	w := do(r, http.MethodGet, "/api/v1/cities", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Cities []models.City `json:"villes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Cities, 1)
	assert.Equal(t, "Marrakech", body.Cities[0].Name)
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, &fakePlanning{}, &fakeFavorites{}, &fakeCities{})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "").Code)
}

func TestFavoritesOutageMapsToBadGateway(t *testing.T) {
	p := &fakePlanning{resp: &models.PlanningResponse{
		Preference: models.Preference{ID: 3},
		Plans:      []models.GeneratedPlan{{TotalCost: 2500}},
	}}
	f := &fakeFavorites{}
	r, manager := newTestRouter(t, p, f, &fakeCities{})
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/v1/preferences", validPreferenceBody).Code)

	f.err = favorites.ErrNoResponse
	w := do(r, http.MethodPost, "/api/v1/favorites", `{"planIndex": 0}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Empty(t, manager.Snapshot().Favorites)

	f.err = nil
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/v1/favorites", `{"planIndex": 0}`).Code)

	f.err = favorites.ErrNoResponse
	w = do(r, http.MethodDelete, "/api/v1/favorites/0", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Len(t, manager.Snapshot().Favorites, 1)
}

func TestRequestsProduceServerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r, _ := newTestRouter(t, &fakePlanning{}, &fakeFavorites{}, &fakeCities{})
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "").Code)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	assert.Equal(t, oteltrace.SpanKindServer, spans[0].SpanKind())
}
