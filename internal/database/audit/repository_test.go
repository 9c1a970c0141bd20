package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/lending/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return db
}

func loanEvent(loanID uint, action string, createdAt time.Time) *entities.AuditEvent {
	return &entities.AuditEvent{
		EventType:   entities.AuditEventLoan,
		Action:      action,
		Description: "Loan event",
		EntityType:  "loan",
		EntityID:    &loanID,
		Status:      entities.AuditStatusSuccess,
		CreatedAt:   createdAt,
	}
}

func TestRepository_LogEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	event := &entities.AuditEvent{
		EventType:   entities.AuditEventLoan,
		Action:      "loan_created",
		Description: "Lent book 3 to user 7",
		Status:      entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	for i := 0; i < 15; i++ {
		require.NoError(t, repo.LogEvent(loanEvent(1, "loan_updated", time.Now().Add(time.Duration(-i)*time.Hour))))
	}

	t.Run("get all events", func(t *testing.T) {
		events, total, err := repo.GetEvents(50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 15)
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.GetEvents(5, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 5)

		events2, _, err := repo.GetEvents(5, 5)
		require.NoError(t, err)
		assert.Len(t, events2, 5)
		assert.NotEqual(t, events[0].ID, events2[0].ID)
	})

	t.Run("order by created_at desc", func(t *testing.T) {
		events, _, err := repo.GetEvents(10, 0)
		require.NoError(t, err)
		for i := 1; i < len(events); i++ {
			assert.False(t, events[i-1].CreatedAt.Before(events[i].CreatedAt))
		}
	})

	t.Run("non-positive limit falls back to default page", func(t *testing.T) {
		events, _, err := repo.GetEvents(0, -3)
		require.NoError(t, err)
		assert.Len(t, events, 15)
	})
}

func TestRepository_GetEventsByType(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.LogEvent(loanEvent(1, "loan_created", time.Now())))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventBook,
		Action:    "book_deleted",
		Status:    entities.AuditStatusSuccess,
	}))
	require.NoError(t, repo.LogEvent(loanEvent(2, "loan_returned", time.Now())))

	events, total, err := repo.GetEventsByType(entities.AuditEventLoan, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, entities.AuditEventLoan, e.EventType)
	}
}

func TestRepository_GetEventsForEntity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()
	require.NoError(t, repo.LogEvent(loanEvent(1, "loan_created", now.Add(-2*time.Hour))))
	require.NoError(t, repo.LogEvent(loanEvent(1, "loan_returned", now.Add(-1*time.Hour))))
	require.NoError(t, repo.LogEvent(loanEvent(2, "loan_created", now)))

	events, total, err := repo.GetEventsForEntity("loan", 1, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, events, 2)
	assert.Equal(t, "loan_returned", events[0].Action)
	assert.Equal(t, "loan_created", events[1].Action)

	events, total, err = repo.GetEventsForEntity("loan", 42, 50, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, events)
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()

	require.NoError(t, repo.LogEvent(loanEvent(1, "old_loan", now.Add(-48*time.Hour))))
	require.NoError(t, repo.LogEvent(loanEvent(1, "new_loan", now.Add(-1*time.Hour))))

	// Delete events older than 24 hours
	deleted, err := repo.DeleteOldEvents(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := repo.GetEvents(50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, events, 1)
	assert.Equal(t, "new_loan", events[0].Action)
}
