package planning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tripwise/internal/app/models"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/auth"
)

func testInput() models.CreatePreferenceInput {
	return models.CreatePreferenceInput{
		DeparturePlace: "casablanca",
		Cities:         []string{"marrakech", " fes ", ""},
		DepartureDate:  "2026-09-01",
		ReturnDate:     "2026-09-07",
		Budget:         "5000",
	}
}

func TestCreatePreferenceNormalizesRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/preferences/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(models.PlanningResponse{
			Message:    "Preference created successfully",
			Preference: models.Preference{ID: 42, Budget: 5000},
			Plans:      []models.GeneratedPlan{{TotalCost: 4800}},
		})
	}))
	defer srv.Close()

	svc := NewService(srv.URL, 2*time.Second, auth.StaticProvider{Value: "session-token"}, zap.NewNop())
	resp, err := svc.CreatePreference(context.Background(), testInput())

	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.Preference.ID)
	require.Len(t, resp.Plans, 1)

	assert.Equal(t, "Casablanca", got["lieuDepart"])
	assert.Equal(t, []any{"Marrakech", "Fes"}, got["cities"])
	assert.Equal(t, float64(5000), got["budget"])
}

func TestCreatePreferenceBudgetCoercion(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	svc := NewService(srv.URL, 2*time.Second, auth.StaticProvider{}, zap.NewNop())
	for _, budget := range []string{"", "abc", "0", "-100"} {
		input := testInput()
		input.Budget = budget
		_, err := svc.CreatePreference(context.Background(), input)

		require.Error(t, err, "budget %q", budget)
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, KindValidation, kind)
		assert.Equal(t, "budget must be a positive number", err.Error())
	}
	assert.False(t, called, "an invalid budget must never reach the server")
}

func TestCreatePreferenceTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	svc := NewService(srv.URL, time.Second, auth.StaticProvider{}, zap.NewNop())
	_, err := svc.CreatePreference(context.Background(), testInput())

	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, kind)
	assert.Equal(t, "no response from server", err.Error())
}

func TestCreatePreferenceRejectionClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    Kind
		wantMessage string
	}{
		{
			name:        "budget shortfall english",
			status:      422,
			body:        `{"message": "Insufficient budget for the selected cities"}`,
			wantKind:    KindBudget,
			wantMessage: "Insufficient budget for the selected cities",
		},
		{
			name:        "budget shortfall french",
			status:      422,
			body:        `{"message": "Budget insuffisant pour ce voyage"}`,
			wantKind:    KindBudget,
			wantMessage: "Budget insuffisant pour ce voyage",
		},
		{
			name:        "generic validation",
			status:      422,
			body:        `{"message": "Not enough days to visit all cities"}`,
			wantKind:    KindValidation,
			wantMessage: "Not enough days to visit all cities",
		},
		{
			name:        "empty body falls back to status",
			status:      500,
			body:        ``,
			wantKind:    KindValidation,
			wantMessage: "server error 500",
		},
		{
			name:        "non-json body falls back to status",
			status:      502,
			body:        `Bad Gateway`,
			wantKind:    KindValidation,
			wantMessage: "server error 502",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc := NewService(srv.URL, 2*time.Second, auth.StaticProvider{}, zap.NewNop())
			_, err := svc.CreatePreference(context.Background(), testInput())

			require.Error(t, err)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantKind, perr.Kind)
			assert.Equal(t, tt.status, perr.Status)
			assert.Equal(t, tt.wantMessage, perr.Message)
		})
	}
}

func TestCreatePreferenceAnonymousOmitsAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.PlanningResponse{Preference: models.Preference{ID: 1}})
	}))
	defer srv.Close()

	svc := NewService(srv.URL, 2*time.Second, auth.StaticProvider{}, zap.NewNop())
	_, err := svc.CreatePreference(context.Background(), testInput())
	require.NoError(t, err)
}

func TestIsBudgetShortfall(t *testing.T) {
	assert.True(t, isBudgetShortfall("INSUFFICIENT BUDGET"))
	assert.True(t, isBudgetShortfall("Le budget insuffisant"))
	assert.False(t, isBudgetShortfall("budget exceeded quota"))
	assert.False(t, isBudgetShortfall(""))
}
