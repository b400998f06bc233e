package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FACorreiaa/go-tripwise/internal/app/models"
	"github.com/FACorreiaa/go-tripwise/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/auth"
)

// Service is the planning client surface consumed by the state manager.
type Service interface {
	CreatePreference(ctx context.Context, input models.CreatePreferenceInput) (*models.PlanningResponse, error)
}

// planRequest is the planning service wire format.
type planRequest struct {
	DeparturePlace string   `json:"lieuDepart"`
	Cities         []string `json:"cities"`
	DepartureDate  string   `json:"dateDepart"`
	ReturnDate     string   `json:"dateRetour"`
	Budget         float64  `json:"budget"`
}

type errorBody struct {
	Message string `json:"message"`
}

type ServiceImpl struct {
	baseURL string
	client  *http.Client
	creds   auth.CredentialProvider
	logger  *zap.Logger
	titler  cases.Caser
}

func NewService(baseURL string, timeout time.Duration, creds auth.CredentialProvider, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		creds:   creds,
		logger:  logger,
		titler:  cases.Title(language.Und),
	}
}

// CreatePreference submits a travel preference and returns the confirmed
// preference with its generated plans. Budget is coerced numerically before
// transmission; all other validation is the planning service's job.
func (s *ServiceImpl) CreatePreference(ctx context.Context, input models.CreatePreferenceInput) (*models.PlanningResponse, error) {
	ctx, span := otel.Tracer("PlanningClient").Start(ctx, "CreatePreference")
	defer span.End()

	l := s.logger.With(zap.String("method", "CreatePreference"))

	budget, err := strconv.ParseFloat(strings.TrimSpace(input.Budget), 64)
	if err != nil || budget <= 0 {
		span.SetStatus(codes.Error, "budget coercion failed")
		return nil, &Error{Kind: KindValidation, Message: "budget must be a positive number"}
	}

	req := planRequest{
		DeparturePlace: s.titler.String(strings.TrimSpace(input.DeparturePlace)),
		Cities:         s.normalizeCities(input.Cities),
		DepartureDate:  input.DepartureDate,
		ReturnDate:     input.ReturnDate,
		Budget:         budget,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode planning request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/preferences/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build planning request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-Id", requestID)
	if token, ok := s.creds.Token(); ok {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	l.Info("Submitting preference to planning service",
		zap.String("request_id", requestID),
		zap.String("departure", req.DeparturePlace),
		zap.Strings("cities", req.Cities),
		zap.Float64("budget", budget))

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	s.record(ctx, "planning", start, err == nil)
	if err != nil {
		l.Error("Planning request transport failure", zap.String("request_id", requestID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, &Error{Kind: KindTransport, Message: "no response from server"}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := s.classifyRejection(resp)
		l.Warn("Planning service rejected preference",
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(perr.Kind)),
			zap.String("message", perr.Message))
		span.SetStatus(codes.Error, "planning rejection")
		return nil, perr
	}

	var planning models.PlanningResponse
	if err := json.NewDecoder(resp.Body).Decode(&planning); err != nil {
		l.Error("Failed to decode planning response", zap.String("request_id", requestID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failure")
		return nil, &Error{Kind: KindValidation, Status: resp.StatusCode, Message: "invalid response from server"}
	}

	l.Info("Preference accepted by planning service",
		zap.String("request_id", requestID),
		zap.Int64("preference_id", planning.Preference.ID),
		zap.Int("plans", len(planning.Plans)))
	span.SetAttributes(attribute.Int("plans.count", len(planning.Plans)))
	span.SetStatus(codes.Ok, "preference created")

	return &planning, nil
}

// classifyRejection maps a non-2xx response to a user-actionable error kind.
// A body matching a budget-shortfall marker is distinguished from generic
// validation failures.
func (s *ServiceImpl) classifyRejection(resp *http.Response) *Error {
	var body errorBody
	message := ""
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		message = strings.TrimSpace(body.Message)
	}
	if message == "" {
		message = fmt.Sprintf("server error %d", resp.StatusCode)
	}
	kind := KindValidation
	if isBudgetShortfall(message) {
		kind = KindBudget
	}
	return &Error{Kind: kind, Status: resp.StatusCode, Message: message}
}

func (s *ServiceImpl) normalizeCities(cities []string) []string {
	out := make([]string, 0, len(cities))
	for _, city := range cities {
		city = strings.TrimSpace(city)
		if city == "" {
			continue
		}
		out = append(out, s.titler.String(city))
	}
	return out
}

func (s *ServiceImpl) record(ctx context.Context, service string, start time.Time, ok bool) {
	m := metrics.Get()
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.Bool("ok", ok),
	)
	m.RemoteRequestsTotal.Add(ctx, 1, attrs)
	m.RemoteRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
