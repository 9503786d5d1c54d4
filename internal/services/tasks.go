package services

import (
	"errors"
	"fmt"
	"time"

	"todolist/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// TaskService is the task store. Every operation is scoped to the owner
// principal: a task owned by someone else behaves exactly like a missing one.
type TaskService interface {
	ListPending(db *gorm.DB, owner models.Principal) ([]models.Task, error)
	ListCompleted(db *gorm.DB, owner models.Principal) ([]models.Task, error)
	Create(db *gorm.DB, owner models.Principal, input TaskInput) (*models.Task, error)
	GetOwned(db *gorm.DB, id uuid.UUID, owner models.Principal) (*models.Task, error)
	Update(db *gorm.DB, id uuid.UUID, owner models.Principal, input TaskInput) (*models.Task, error)
	Complete(db *gorm.DB, id uuid.UUID, owner models.Principal) (*models.Task, error)
	Delete(db *gorm.DB, id uuid.UUID, owner models.Principal) error
}

var errNoOwner = errors.New("task owner is required")

type TaskServiceImpl struct {
	now func() time.Time
}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{now: time.Now}
}

// WithClock replaces the time source used for created and completed stamps.
func (s *TaskServiceImpl) WithClock(now func() time.Time) *TaskServiceImpl {
	s.now = now
	return s
}

func ownedBy(db *gorm.DB, owner models.Principal) *gorm.DB {
	return db.Where("user_id = ?", owner.UserID)
}

func (s *TaskServiceImpl) ListPending(db *gorm.DB, owner models.Principal) ([]models.Task, error) {
	tasks := []models.Task{}
	err := ownedBy(db, owner).
		Where("date_completed IS NULL").
		Order("created_at ASC").
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	return tasks, nil
}

// ListCompleted returns the owner's completed tasks, most recently completed first.
func (s *TaskServiceImpl) ListCompleted(db *gorm.DB, owner models.Principal) ([]models.Task, error) {
	tasks := []models.Task{}
	err := ownedBy(db, owner).
		Where("date_completed IS NOT NULL").
		Order("date_completed DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskServiceImpl) Create(db *gorm.DB, owner models.Principal, input TaskInput) (*models.Task, error) {
	if owner.IsAnonymous() {
		return nil, errNoOwner
	}

	input, err := ValidateTaskInput(input)
	if err != nil {
		return nil, err
	}

	taskID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}

	task := models.Task{
		ID:          taskID,
		UserID:      owner.UserID,
		Title:       input.Title,
		Description: input.Description,
		CreatedAt:   s.now().UTC(),
	}
	if err := db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return &task, nil
}

// GetOwned looks a task up by (id, owner). It returns ErrTaskNotFound both
// when the id does not exist and when it belongs to another user.
func (s *TaskServiceImpl) GetOwned(db *gorm.DB, id uuid.UUID, owner models.Principal) (*models.Task, error) {
	if id == uuid.Nil || owner.IsAnonymous() {
		return nil, ErrTaskNotFound
	}

	var task models.Task
	if err := ownedBy(db, owner).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// Update replaces title and description only.
func (s *TaskServiceImpl) Update(db *gorm.DB, id uuid.UUID, owner models.Principal, input TaskInput) (*models.Task, error) {
	task, err := s.GetOwned(db, id, owner)
	if err != nil {
		return nil, err
	}

	input, err = ValidateTaskInput(input)
	if err != nil {
		return nil, err
	}

	err = ownedBy(db.Model(&models.Task{}), owner).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":       input.Title,
			"description": input.Description,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	task.Title = input.Title
	task.Description = input.Description
	return task, nil
}

// Complete stamps date_completed with the current time. Completing an
// already completed task moves the stamp forward.
func (s *TaskServiceImpl) Complete(db *gorm.DB, id uuid.UUID, owner models.Principal) (*models.Task, error) {
	task, err := s.GetOwned(db, id, owner)
	if err != nil {
		return nil, err
	}

	completedAt := s.now().UTC()
	result := ownedBy(db.Model(&models.Task{}), owner).
		Where("id = ?", id).
		Update("date_completed", completedAt)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to complete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrTaskNotFound
	}

	task.DateCompleted = &completedAt
	return task, nil
}

func (s *TaskServiceImpl) Delete(db *gorm.DB, id uuid.UUID, owner models.Principal) error {
	if id == uuid.Nil || owner.IsAnonymous() {
		return ErrTaskNotFound
	}

	result := ownedBy(db, owner).Where("id = ?", id).Delete(&models.Task{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
