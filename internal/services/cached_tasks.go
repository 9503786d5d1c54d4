package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todolist/internal/cache"
	"todolist/internal/models"

	"github.com/charmbracelet/log"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// CachedTaskService keeps each owner's pending and completed lists in the
// cache. List keys carry a per-owner generation that every mutation bumps,
// so a list read that raced a mutation can only fill a key nobody reads
// again. A failing cache never fails the request: reads fall through to
// the store.
type CachedTaskService struct {
	taskService TaskService
	cache       cache.Cache
	ttl         time.Duration
	logger      *log.Logger
}

func NewCachedTaskService(taskService TaskService, cacheInstance cache.Cache, ttl time.Duration, logger *log.Logger) *CachedTaskService {
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
		ttl:         ttl,
		logger:      logger,
	}
}

const (
	pendingList   = "pending"
	completedList = "completed"
)

func generationKey(owner models.Principal) string {
	return fmt.Sprintf("tasks:gen:%s", owner.UserID)
}

func listKey(list string, owner models.Principal, generation int64) string {
	return fmt.Sprintf("tasks:%s:%s:%d", list, owner.UserID, generation)
}

func ownerTag(owner models.Principal) string {
	return fmt.Sprintf("owner:%s", owner.UserID)
}

func (s *CachedTaskService) generation(ctx context.Context, owner models.Principal) (int64, error) {
	var generation int64
	err := s.cache.Get(ctx, generationKey(owner), &generation)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, nil
	}
	return generation, err
}

func (s *CachedTaskService) cachedList(db *gorm.DB, owner models.Principal, list string, load func(*gorm.DB, models.Principal) ([]models.Task, error)) ([]models.Task, error) {
	ctx := db.Statement.Context

	generation, err := s.generation(ctx, owner)
	if err != nil {
		s.logger.Warn("task list generation read failed", "owner", owner.UserID, "err", err)
		return load(db, owner)
	}
	key := listKey(list, owner, generation)

	var cached []models.Task
	err = s.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("task list cache read failed", "key", key, "err", err)
	}

	tasks, err := load(db, owner)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetWithTags(ctx, key, tasks, s.ttl, []string{ownerTag(owner)}); err != nil {
		s.logger.Warn("task list cache write failed", "key", key, "err", err)
	}
	return tasks, nil
}

// invalidate retires the owner's current generation, then drops the lists
// already written under the owner tag.
func (s *CachedTaskService) invalidate(db *gorm.DB, owner models.Principal) {
	ctx := db.Statement.Context
	if _, err := s.cache.Incr(ctx, generationKey(owner)); err != nil {
		s.logger.Warn("task list generation bump failed", "owner", owner.UserID, "err", err)
	}
	if err := s.cache.InvalidateByTag(ctx, ownerTag(owner)); err != nil {
		s.logger.Warn("task list cache invalidation failed", "owner", owner.UserID, "err", err)
	}
}

func (s *CachedTaskService) ListPending(db *gorm.DB, owner models.Principal) ([]models.Task, error) {
	return s.cachedList(db, owner, pendingList, s.taskService.ListPending)
}

func (s *CachedTaskService) ListCompleted(db *gorm.DB, owner models.Principal) ([]models.Task, error) {
	return s.cachedList(db, owner, completedList, s.taskService.ListCompleted)
}

func (s *CachedTaskService) Create(db *gorm.DB, owner models.Principal, input TaskInput) (*models.Task, error) {
	task, err := s.taskService.Create(db, owner, input)
	if err != nil {
		return nil, err
	}
	s.invalidate(db, owner)
	return task, nil
}

func (s *CachedTaskService) GetOwned(db *gorm.DB, id uuid.UUID, owner models.Principal) (*models.Task, error) {
	return s.taskService.GetOwned(db, id, owner)
}

func (s *CachedTaskService) Update(db *gorm.DB, id uuid.UUID, owner models.Principal, input TaskInput) (*models.Task, error) {
	task, err := s.taskService.Update(db, id, owner, input)
	if err != nil {
		return nil, err
	}
	s.invalidate(db, owner)
	return task, nil
}

func (s *CachedTaskService) Complete(db *gorm.DB, id uuid.UUID, owner models.Principal) (*models.Task, error) {
	task, err := s.taskService.Complete(db, id, owner)
	if err != nil {
		return nil, err
	}
	s.invalidate(db, owner)
	return task, nil
}

func (s *CachedTaskService) Delete(db *gorm.DB, id uuid.UUID, owner models.Principal) error {
	if err := s.taskService.Delete(db, id, owner); err != nil {
		return err
	}
	s.invalidate(db, owner)
	return nil
}
