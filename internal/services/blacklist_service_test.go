package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklistService_ReplaceNormalizes(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	svc := NewBlacklistService(db)
	ctx := context.Background()

	stored, err := svc.Replace(ctx, acct.ID, "alice", []string{" sudo ", "rm", "", "rm", "   ", "fdisk"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fdisk", "rm", "sudo"}, stored)

	got, err := svc.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"fdisk", "rm", "sudo"}, got)
}

func TestBlacklistService_ReplaceIsWholesale(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	other := seedAccount(t, db, "bob")
	seedBlacklist(t, db, acct.ID, "rm", "sudo")
	seedBlacklist(t, db, other.ID, "shutdown")
	svc := NewBlacklistService(db)
	ctx := context.Background()

	_, err := svc.Replace(ctx, acct.ID, "alice", []string{"mkfs"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mkfs"}, got)

	untouched, err := svc.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"shutdown"}, untouched)

	_, err = svc.Replace(ctx, acct.ID, "alice", nil)
	require.NoError(t, err)
	got, err = svc.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestBlacklistService_ReplaceWritesAudit(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	svc := NewBlacklistService(db)

	_, err := svc.Replace(context.Background(), acct.ID, "alice", []string{"rm"})
	require.NoError(t, err)

	events, err := NewAuditService(db).List(context.Background(), acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AuditBlacklistReplace, events[0].Action)
	assert.Equal(t, "rm", events[0].Details)
	assert.NotEmpty(t, events[0].UUID)
}

func TestBlacklistService_ContainsIsExact(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	seedBlacklist(t, db, acct.ID, "rm", "sudo")
	svc := NewBlacklistService(db)
	ctx := context.Background()

	cases := map[string]bool{
		"rm":       true,
		"sudo":     true,
		"RM":       false,
		"rm -rf /": false,
		" rm":      false,
		"ls":       false,
	}
	for cmd, want := range cases {
		got, err := svc.Contains(ctx, acct.ID, cmd)
		require.NoError(t, err)
		assert.Equal(t, want, got, cmd)
	}

	got, err := svc.Contains(ctx, "unknown-account", "rm")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestBlacklistService_ReplaceRequiresAccount(t *testing.T) {
	svc := NewBlacklistService(setupTestDB(t))
	_, err := svc.Replace(context.Background(), " ", "x", []string{"rm"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestNormalizeCommands(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeCommands(nil))
	assert.Equal(t, []string{"a", "b"}, NormalizeCommands([]string{"b", " a", "a ", "b"}))
}
