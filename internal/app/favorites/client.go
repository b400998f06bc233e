package favorites

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tripwise/internal/app/models"
	"github.com/FACorreiaa/go-tripwise/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/auth"
)

// Success-message strings the favorites service uses to confirm mutations.
// A 2xx response without the expected message is treated as a failure, since
// the service is known to return 200 with unrelated shapes in edge cases.
const (
	createdMessage = "Favorite added successfully"
	deletedMessage = "Favorite deleted successfully"
)

var (
	// ErrUnexpectedResponse covers 2xx responses whose body lacks the
	// expected confirmation message.
	ErrUnexpectedResponse = errors.New("unexpected response from favorites service")
	// ErrNoResponse means the request never reached the favorites service
	// or no response came back.
	ErrNoResponse = errors.New("no response from server")
)

// Service is the favorites client surface consumed by the state manager.
type Service interface {
	List(ctx context.Context) ([]models.Favorite, error)
	Create(ctx context.Context, preferenceID int64, plan models.GeneratedPlan) (*models.Favorite, error)
	Delete(ctx context.Context, favoriteID int64) error
}

type listResponse struct {
	Favorites []models.Favorite `json:"favorites"`
}

type createRequest struct {
	PreferenceID int64                `json:"idPlan"`
	Plan         models.GeneratedPlan `json:"plan"`
}

type mutationResponse struct {
	Message  string           `json:"message"`
	Favorite *models.Favorite `json:"favorite"`
}

type ServiceImpl struct {
	baseURL string
	client  *http.Client
	creds   auth.CredentialProvider
	logger  *zap.Logger
}

func NewService(baseURL string, timeout time.Duration, creds auth.CredentialProvider, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		creds:   creds,
		logger:  logger,
	}
}

// List fetches the server-side favorites, the authoritative set.
func (s *ServiceImpl) List(ctx context.Context) ([]models.Favorite, error) {
	ctx, span := otel.Tracer("FavoritesClient").Start(ctx, "List")
	defer span.End()

	resp, err := s.do(ctx, http.MethodGet, "/favorites/", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := s.rejectionError(resp)
		span.SetStatus(codes.Error, "list rejected")
		return nil, err
	}

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failure")
		return nil, errors.Wrap(err, "failed to decode favorites list")
	}
	if list.Favorites == nil {
		list.Favorites = []models.Favorite{}
	}
	span.SetAttributes(attribute.Int("favorites.count", len(list.Favorites)))
	span.SetStatus(codes.Ok, "favorites listed")
	return list.Favorites, nil
}

// Create bookmarks a plan server-side and returns the created record with
// its server-assigned identifier.
func (s *ServiceImpl) Create(ctx context.Context, preferenceID int64, plan models.GeneratedPlan) (*models.Favorite, error) {
	ctx, span := otel.Tracer("FavoritesClient").Start(ctx, "Create")
	defer span.End()

	body, err := json.Marshal(createRequest{PreferenceID: preferenceID, Plan: plan})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode favorite")
	}

	resp, err := s.do(ctx, http.MethodPost, "/favorites/", bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := s.rejectionError(resp)
		span.SetStatus(codes.Error, "create rejected")
		return nil, err
	}

	var created mutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failure")
		return nil, errors.Wrap(err, "failed to decode created favorite")
	}
	if created.Message != createdMessage || created.Favorite == nil {
		span.SetStatus(codes.Error, "unexpected response shape")
		return nil, errors.Wrapf(ErrUnexpectedResponse, "message %q", created.Message)
	}

	span.SetAttributes(attribute.Int64("favorite.id", created.Favorite.ID))
	span.SetStatus(codes.Ok, "favorite created")
	return created.Favorite, nil
}

// Delete removes a favorite by its server identifier.
func (s *ServiceImpl) Delete(ctx context.Context, favoriteID int64) error {
	ctx, span := otel.Tracer("FavoritesClient").Start(ctx, "Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("favorite.id", favoriteID))

	resp, err := s.do(ctx, http.MethodDelete, fmt.Sprintf("/favorites/%d", favoriteID), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := s.rejectionError(resp)
		span.SetStatus(codes.Error, "delete rejected")
		return err
	}

	var deleted mutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&deleted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failure")
		return errors.Wrap(err, "failed to decode delete confirmation")
	}
	if deleted.Message != deletedMessage {
		span.SetStatus(codes.Error, "unexpected response shape")
		return errors.Wrapf(ErrUnexpectedResponse, "message %q", deleted.Message)
	}

	span.SetStatus(codes.Ok, "favorite deleted")
	return nil
}

func (s *ServiceImpl) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build favorites request")
	}
	req.Header.Set("Content-Type", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	if token, ok := s.creds.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.record(ctx, start, err == nil)
	if err != nil {
		s.logger.Error("Favorites request transport failure",
			zap.String("method", method),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, ErrNoResponse
	}
	return resp, nil
}

func (s *ServiceImpl) rejectionError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	message := ""
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		message = strings.TrimSpace(body.Message)
	}
	if message == "" {
		message = fmt.Sprintf("server error %d", resp.StatusCode)
	}
	return errors.New(message)
}

func (s *ServiceImpl) record(ctx context.Context, start time.Time, ok bool) {
	m := metrics.Get()
	attrs := metric.WithAttributes(
		attribute.String("service", "favorites"),
		attribute.Bool("ok", ok),
	)
	m.RemoteRequestsTotal.Add(ctx, 1, attrs)
	m.RemoteRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
