package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tripwise/internal/app/cities"
	"github.com/FACorreiaa/go-tripwise/internal/app/favorites"
	"github.com/FACorreiaa/go-tripwise/internal/app/models"
	"github.com/FACorreiaa/go-tripwise/internal/app/planning"
	"github.com/FACorreiaa/go-tripwise/internal/app/state"
)

// StateHandlers exposes the state manager to UI consumers over JSON.
type StateHandlers struct {
	manager *state.Manager
	cities  cities.Service
	logger  *zap.Logger
}

func NewStateHandlers(manager *state.Manager, citySvc cities.Service, logger *zap.Logger) *StateHandlers {
	return &StateHandlers{
		manager: manager,
		cities:  citySvc,
		logger:  logger,
	}
}

type createPreferenceRequest struct {
	DeparturePlace string      `json:"lieuDepart" binding:"required"`
	Cities         []string    `json:"cities" binding:"required,min=1"`
	DepartureDate  string      `json:"dateDepart" binding:"required"`
	ReturnDate     string      `json:"dateRetour" binding:"required"`
	Budget         json.Number `json:"budget" binding:"required"`
}

type favoriteRequest struct {
	PlanIndex *int `json:"planIndex" binding:"required"`
}

// GetState returns the current state snapshot.
func (h *StateHandlers) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Snapshot())
}

// CreatePreference submits a preference and returns the generated plans.
func (h *StateHandlers) CreatePreference(c *gin.Context) {
	var req createPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	resp, err := h.manager.CreatePreference(c.Request.Context(), models.CreatePreferenceInput{
		DeparturePlace: req.DeparturePlace,
		Cities:         req.Cities,
		DepartureDate:  req.DepartureDate,
		ReturnDate:     req.ReturnDate,
		Budget:         req.Budget.String(),
	})
	if err != nil {
		kind, _ := planning.KindOf(err)
		c.JSON(statusForKind(kind, err), gin.H{"message": err.Error(), "kind": string(kind)})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListFavorites returns the accumulated favorites.
func (h *StateHandlers) ListFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"favorites": h.manager.Snapshot().Favorites})
}

// AddFavorite bookmarks a plan by its index within the current plan set.
func (h *StateHandlers) AddFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if ok := h.manager.AddToFavorites(c.Request.Context(), *req.PlanIndex); !ok {
		msg := h.manager.Snapshot().LastError
		c.JSON(statusForFavoriteFailure(msg), gin.H{"message": msg})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Favorite added successfully"})
}

// RemoveFavorite deletes a favorite by its position in the favorites list.
func (h *StateHandlers) RemoveFavorite(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid favorite index"})
		return
	}

	if ok := h.manager.RemoveFromFavorites(c.Request.Context(), index); !ok {
		msg := h.manager.Snapshot().LastError
		c.JSON(statusForFavoriteFailure(msg), gin.H{"message": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Favorite deleted successfully"})
}

// ListCities serves the destination catalog for the preference form.
func (h *StateHandlers) ListCities(c *gin.Context) {
	catalog, err := h.cities.AvailableCities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"villes": catalog})
}

// StreamState pushes a state snapshot over SSE after every applied mutation,
// starting with the current one.
func (h *StateHandlers) StreamState(c *gin.Context) {
	ch := make(chan state.Snapshot, 8)
	unsubscribe := h.manager.Subscribe(func(s state.Snapshot) {
		select {
		case ch <- s:
		default: // slow consumer, drop; the next event carries newer state
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("state", h.manager.Snapshot())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case snap := <-ch:
			c.SSEvent("state", snap)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// statusForFavoriteFailure distinguishes a favorites-service outage from
// precondition and rejection failures. The manager reports failures as a
// stored message, so the transport case is recognized by its sentinel text.
func statusForFavoriteFailure(msg string) int {
	if msg == favorites.ErrNoResponse.Error() {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

// statusForKind maps a planning error to a gateway status code.
func statusForKind(kind planning.Kind, err error) int {
	switch kind {
	case planning.KindTransport:
		return http.StatusBadGateway
	case planning.KindBudget:
		return http.StatusUnprocessableEntity
	case planning.KindValidation:
		var perr *planning.Error
		if errors.As(err, &perr) && perr.Status >= 400 {
			return perr.Status
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
