package redis

import (
	"context"
	"errors"
	"time"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/pkg/logger"
)

// Store is the key/value surface CachedSource needs. *Cache implements it.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Resource names used in course keys.
const (
	resourceCourse      = "course"
	resourceStudents    = "students"
	resourceEnrollments = "enrollments"
	resourceCategories  = "categories"
	resourceGroupsAll   = "groups"
	resourceGroupsIn    = "groups:"
)

// CachedSource decorates a roster.CourseSource with a read-through cache.
// Cache failures are logged and fall through to the wrapped source; they
// never fail an export.
type CachedSource struct {
	next   roster.CourseSource
	store  Store
	host   string
	ttl    time.Duration
	logger *logger.Logger
}

var _ roster.CourseSource = (*CachedSource)(nil)

// NewCachedSource wraps next. host identifies the Canvas instance in keys.
func NewCachedSource(next roster.CourseSource, store Store, host string, ttl time.Duration, log *logger.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = TTLCourseData
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSource{
		next:   next,
		store:  store,
		host:   host,
		ttl:    ttl,
		logger: log.With(logger.Component("course_cache")),
	}
}

// Course implements roster.CourseSource.
func (s *CachedSource) Course(ctx context.Context, id int64) (roster.Course, error) {
	return cached(ctx, s, CourseKey(s.host, id, resourceCourse), func() (roster.Course, error) {
		return s.next.Course(ctx, id)
	})
}

// Students implements roster.CourseSource.
func (s *CachedSource) Students(ctx context.Context, course roster.Course) ([]roster.RawStudent, error) {
	return cached(ctx, s, CourseKey(s.host, course.ID, resourceStudents), func() ([]roster.RawStudent, error) {
		return s.next.Students(ctx, course)
	})
}

// GroupMemberships implements roster.CourseSource. Progress is only
// reported when the wrapped source is asked.
func (s *CachedSource) GroupMemberships(ctx context.Context, course roster.Course, category string, progress roster.ProgressFunc) (map[int64]roster.Membership, error) {
	resource := resourceGroupsAll
	if category != "" {
		resource = resourceGroupsIn + category
	}
	return cached(ctx, s, CourseKey(s.host, course.ID, resource), func() (map[int64]roster.Membership, error) {
		return s.next.GroupMemberships(ctx, course, category, progress)
	})
}

// Enrollments implements roster.CourseSource.
func (s *CachedSource) Enrollments(ctx context.Context, course roster.Course) (map[int64]string, error) {
	return cached(ctx, s, CourseKey(s.host, course.ID, resourceEnrollments), func() (map[int64]string, error) {
		return s.next.Enrollments(ctx, course)
	})
}

// GroupCategories implements roster.CourseSource.
func (s *CachedSource) GroupCategories(ctx context.Context, course roster.Course) ([]string, error) {
	return cached(ctx, s, CourseKey(s.host, course.ID, resourceCategories), func() ([]string, error) {
		return s.next.GroupCategories(ctx, course)
	})
}

// Invalidate drops all cached data of a course.
func (s *CachedSource) Invalidate(ctx context.Context, courseID int64) (int, error) {
	n, err := s.store.DeleteByPattern(ctx, CoursePattern(s.host, courseID))
	if err != nil {
		return n, err
	}
	s.logger.Info("course cache invalidated", logger.CourseID(courseID), logger.Int("keys", n))
	return n, nil
}

// cached returns the value stored under key or loads and stores it.
// Errors from load are returned unchanged and never cached.
func cached[T any](ctx context.Context, s *CachedSource, key string, load func() (T, error)) (T, error) {
	var v T
	err := s.store.Get(ctx, key, &v)
	if err == nil {
		s.logger.Debug("cache hit", logger.String("key", key))
		return v, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("cache read failed", logger.String("key", key), logger.Err(err))
	}

	v, err = load()
	if err != nil {
		return v, err
	}

	if err := s.store.Set(ctx, key, v, s.ttl); err != nil {
		s.logger.Warn("cache write failed", logger.String("key", key), logger.Err(err))
	}
	return v, nil
}
