package services_test

import (
	"sync"
	"testing"
	"time"

	"todolist/internal/database"
	"todolist/internal/models"
	"todolist/internal/services"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, database.Migrate(pool.DB))
	return pool.DB
}

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
}

func newStepClock() *stepClock {
	return &stepClock{next: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(time.Minute)
	return now
}

func createUser(t *testing.T, db *gorm.DB, username string) models.Principal {
	t.Helper()

	user, err := services.NewAccountService(4).CreateUser(db, services.SignupInput{
		Username:        username,
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
	})
	require.NoError(t, err)
	return models.Principal{UserID: user.ID, Username: user.Username}
}

func taskIDs(tasks []models.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID.String()
	}
	return ids
}
