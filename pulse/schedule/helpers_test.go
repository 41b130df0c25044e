package schedule

import (
	"database/sql"
	"testing"

	dawntest "github.com/teranos/dawn/internal/testing"
)

// createTestDB creates an in-memory test database with the executions schema.
func createTestDB(t *testing.T) *sql.DB {
	return dawntest.CreateMigratedTestDB(t)
}
