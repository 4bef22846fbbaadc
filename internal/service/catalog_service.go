package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/krs-admin-api/internal/models"
	appErrors "github.com/noah-isme/krs-admin-api/pkg/errors"
)

type studentLister interface {
	List(ctx context.Context, search string) ([]models.StudentRow, error)
}

type courseLister interface {
	List(ctx context.Context, search string) ([]models.CourseRow, error)
}

// CatalogService serves the capped student/course picker listings, with an
// optional read-through Redis cache in front. Cache failures degrade to the
// database; entries expire by TTL only, so the picker may lag writes by at
// most the TTL.
type CatalogService struct {
	students studentLister
	courses  courseLister
	cache    *redis.Client
	ttl      time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewCatalogService constructs a CatalogService. A nil cache disables
// caching entirely; a nil metrics service disables query timing.
func NewCatalogService(students studentLister, courses courseLister, cache *redis.Client, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *CatalogService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{students: students, courses: courses, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

func (s *CatalogService) observeQuery(name string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(name, time.Since(start))
	}
}

// Students lists students matching the search term.
func (s *CatalogService) Students(ctx context.Context, search string) ([]models.StudentRow, error) {
	search = strings.TrimSpace(search)
	key := "catalog:students:" + search

	rows := []models.StudentRow{}
	if s.cachedGet(ctx, key, &rows) {
		return rows, nil
	}

	start := time.Now()
	rows, err := s.students.List(ctx, search)
	s.observeQuery("catalog_students", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	s.cachedSet(ctx, key, rows)
	return rows, nil
}

// Courses lists courses matching the search term.
func (s *CatalogService) Courses(ctx context.Context, search string) ([]models.CourseRow, error) {
	search = strings.TrimSpace(search)
	key := "catalog:courses:" + search

	rows := []models.CourseRow{}
	if s.cachedGet(ctx, key, &rows) {
		return rows, nil
	}

	start := time.Now()
	rows, err := s.courses.List(ctx, search)
	s.observeQuery("catalog_courses", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	s.cachedSet(ctx, key, rows)
	return rows, nil
}

func (s *CatalogService) cachedGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		s.logger.Debug("catalog cache entry malformed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *CatalogService) cachedSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Debug("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
