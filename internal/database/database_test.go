package database

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/logger"
	"github.com/safecli/safecli/internal/models"
)

func TestConnect(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")
	db, err := Connect(dbPath)
	require.NoError(t, err)
	require.NotNil(t, db)

	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "table for %T", m)
	}
}

func TestConnect_ExplicitDSN(t *testing.T) {
	db, err := Connect("file:connect_explicit?mode=memory&cache=shared")
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&models.ApprovalRequest{}))
}

func TestWithPragmas(t *testing.T) {
	assert.Equal(t, "a.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", withPragmas("a.db"))
	assert.Equal(t, "a.db?mode=ro", withPragmas("a.db?mode=ro"))
}

func TestOpenTestDB(t *testing.T) {
	db := OpenTestDB(t)
	require.NoError(t, db.Create(&models.Account{Username: "u", Email: "u@example.com"}).Error)

	var count int64
	db.Model(&models.Account{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestOpen_LogsThroughLogrusWithoutRecordNotFound(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(false, buf)
	t.Cleanup(func() { logger.Init(false, nil) })

	db := OpenTestDB(t)

	var acct models.Account
	err := db.First(&acct, "id = ?", "missing").Error
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.NotContains(t, buf.String(), "record not found")

	var n int64
	require.Error(t, db.Table("no_such_table").Count(&n).Error)
	assert.Contains(t, buf.String(), "no such table")
	assert.Contains(t, buf.String(), `"component":"gorm"`)
}
