package models_test

import (
	"testing"
	"time"

	"todolist/internal/models"

	"github.com/gofrs/uuid"
)

func TestTask_PendingUntilCompleted(t *testing.T) {
	task := models.Task{
		ID:     uuid.Must(uuid.NewV4()),
		UserID: uuid.Must(uuid.NewV4()),
		Title:  "Buy milk",
	}

	if !task.IsPending() || task.IsCompleted() {
		t.Error("Expected a task without completion date to be pending")
	}

	now := time.Now()
	task.DateCompleted = &now

	if task.IsPending() || !task.IsCompleted() {
		t.Error("Expected a task with completion date to be completed")
	}
}

func TestTask_BeforeCreateAssignsDefaults(t *testing.T) {
	task := models.Task{Title: "Write report"}

	if err := task.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Expected an id to be assigned")
	}
	if task.CreatedAt.IsZero() {
		t.Error("Expected a creation time to be assigned")
	}

	id, created := task.ID, task.CreatedAt
	if err := task.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}
	if task.ID != id || !task.CreatedAt.Equal(created) {
		t.Error("Expected existing id and creation time to be kept")
	}
}

func TestUser_BeforeCreateAssignsID(t *testing.T) {
	user := models.User{Username: "testuser", Password: "hashedpassword"}

	if err := user.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}
	if user.ID == uuid.Nil {
		t.Error("Expected an id to be assigned")
	}
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Now()
	session := models.Session{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    uuid.Must(uuid.NewV4()),
		ExpiresAt: now.Add(time.Hour),
	}

	if session.IsExpired(now) {
		t.Error("Expected session to be valid before expiry")
	}
	if !session.IsExpired(now.Add(time.Hour)) {
		t.Error("Expected session to be expired at its expiry time")
	}
}

func TestPrincipal_IsAnonymous(t *testing.T) {
	if !(models.Principal{}).IsAnonymous() {
		t.Error("Expected zero principal to be anonymous")
	}

	p := models.Principal{UserID: uuid.Must(uuid.NewV4()), Username: "alice"}
	if p.IsAnonymous() {
		t.Error("Expected principal with user id to be authenticated")
	}
}
