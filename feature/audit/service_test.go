package audit

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// setupMockDB creates a mock GORM DB for testing.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func TestRecorderRecord(t *testing.T) {
	db, mock := setupMockDB(t)
	recorder := NewRecorder(db)
	tenantID := uuid.New()
	entityID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `audit_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := recorder.Record(context.Background(), SystemContext(tenantID), "sync.UPDATE", "inventory_item", &entityID,
		map[string]any{"qty_available": 5},
		map[string]any{"qty_available": 10},
	)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorderRecordUnserializableState(t *testing.T) {
	db, _ := setupMockDB(t)
	recorder := NewRecorder(db)

	// Channels cannot be marshalled; nothing must reach the database.
	err := recorder.Record(context.Background(), SystemContext(uuid.New()), "sync.ADD", "inventory_item", nil,
		nil, make(chan int))

	assert.Error(t, err)
}

func TestRecorderList(t *testing.T) {
	db, mock := setupMockDB(t)
	recorder := NewRecorder(db)
	tenantID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "action", "entity_type"}).
		AddRow(uuid.NewString(), tenantID.String(), "sync.ADD", "inventory_item").
		AddRow(uuid.NewString(), tenantID.String(), "sync.REMOVE", "inventory_item")

	mock.ExpectQuery("SELECT \\* FROM `audit_logs` WHERE tenant_id = \\? AND entity_type = \\?").
		WithArgs(tenantID.String(), "inventory_item").
		WillReturnRows(rows)

	logs, err := recorder.List(context.Background(), tenantID, "inventory_item", nil)

	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, "sync.ADD", logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
