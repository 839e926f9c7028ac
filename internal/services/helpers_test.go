package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/database"
	"github.com/safecli/safecli/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return database.OpenTestDB(t)
}

func seedAccount(t *testing.T, db *gorm.DB, username string) *models.Account {
	t.Helper()
	acct := &models.Account{Username: username, Email: username + "@example.com", Active: true}
	require.NoError(t, acct.SetPassword("password123"))
	require.NoError(t, db.Create(acct).Error)
	return acct
}

// seedInactiveAccount flips active after insert; a false bool would lose to the column default.
func seedInactiveAccount(t *testing.T, db *gorm.DB, username string) *models.Account {
	t.Helper()
	acct := seedAccount(t, db, username)
	require.NoError(t, db.Model(acct).Update("active", false).Error)
	return acct
}

func seedEndpoint(t *testing.T, db *gorm.DB, accountID, hostname, osUser string) *models.Endpoint {
	t.Helper()
	ep := &models.Endpoint{
		AccountID: accountID,
		Name:      hostname + "-agent",
		Hostname:  hostname,
		OSUser:    osUser,
		Active:    true,
	}
	require.NoError(t, db.Create(ep).Error)
	return ep
}

func seedRequest(t *testing.T, db *gorm.DB, endpointID, command string, created time.Time) *models.ApprovalRequest {
	t.Helper()
	req := &models.ApprovalRequest{
		EndpointID: endpointID,
		UserName:   "alice",
		Command:    command,
		Status:     models.RequestPending,
		CreatedAt:  created,
	}
	require.NoError(t, db.Create(req).Error)
	return req
}

func seedBlacklist(t *testing.T, db *gorm.DB, accountID string, commands ...string) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return replaceBlacklist(tx, accountID, NormalizeCommands(commands))
	}))
}

func requestStatus(t *testing.T, db *gorm.DB, id string) models.RequestStatus {
	t.Helper()
	var req models.ApprovalRequest
	require.NoError(t, db.First(&req, "id = ?", id).Error)
	return req.Status
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
