package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Task struct {
	ID            uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID        uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Title         string     `json:"title" gorm:"size:100;not null"`
	Description   string     `json:"description" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at"`
	DateCompleted *time.Time `json:"date_completed,omitempty" gorm:"index"`
}

// BeforeCreate assigns an id and creation time when the caller left them empty.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (t *Task) IsPending() bool {
	return t.DateCompleted == nil
}

func (t *Task) IsCompleted() bool {
	return t.DateCompleted != nil
}
