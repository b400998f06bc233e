package cities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tripwise/internal/app/models"
)

const catalogCacheKey = "city_catalog"

// Service serves the city catalog the preference form offers. The catalog
// changes rarely, so responses are cached with a TTL.
type Service interface {
	AvailableCities(ctx context.Context) ([]models.City, error)
}

type catalogResponse struct {
	Cities []models.City `json:"villes"`
}

type ServiceImpl struct {
	baseURL string
	client  *http.Client
	cache   *gocache.Cache
	logger  *zap.Logger
}

func NewService(baseURL string, timeout, cacheTTL time.Duration, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
		logger:  logger,
	}
}

// AvailableCities returns the destination catalog, read through the cache.
func (s *ServiceImpl) AvailableCities(ctx context.Context) ([]models.City, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "AvailableCities")
	defer span.End()

	if cached, found := s.cache.Get(catalogCacheKey); found {
		cities := cached.([]models.City)
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Int("cities.count", len(cities)))
		span.SetStatus(codes.Ok, "catalog served from cache")
		return cities, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/villes/", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build city catalog request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("City catalog request failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, errors.New("no response from server")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, "catalog rejected")
		return nil, errors.Errorf("server error %d", resp.StatusCode)
	}

	var catalog catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failure")
		return nil, errors.Wrap(err, "failed to decode city catalog")
	}
	if catalog.Cities == nil {
		catalog.Cities = []models.City{}
	}

	s.cache.Set(catalogCacheKey, catalog.Cities, gocache.DefaultExpiration)
	s.logger.Info("City catalog refreshed", zap.Int("count", len(catalog.Cities)))
	span.SetAttributes(attribute.Bool("cache.hit", false), attribute.Int("cities.count", len(catalog.Cities)))
	span.SetStatus(codes.Ok, fmt.Sprintf("catalog refreshed with %d cities", len(catalog.Cities)))

	return catalog.Cities, nil
}
