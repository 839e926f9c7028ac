package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingNotifier) NotifyPending(_ context.Context, accountID string, req *models.ApprovalRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, accountID+":"+req.ID)
}

func newTestGate(db *gorm.DB, notifier PendingNotifier) (*GateService, *ApprovalService) {
	approvals := NewApprovalService(db)
	return NewGateService(NewBlacklistService(db), NewEndpointService(db), approvals, notifier), approvals
}

func TestGateService_AllowedCommandCreatesNothing(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	ep := seedEndpoint(t, db, acct.ID, "host", "alice")
	seedBlacklist(t, db, acct.ID, "rm", "sudo")
	notifier := &recordingNotifier{}
	gate, _ := newTestGate(db, notifier)

	for _, cmd := range []string{"ls", "rm -rf /", "Sudo"} {
		d, err := gate.Evaluate(context.Background(), acct.ID, ep.ID, cmd)
		require.NoError(t, err)
		assert.False(t, d.Blocked, cmd)
		assert.Empty(t, d.RequestID)
	}

	var count int64
	db.Model(&models.ApprovalRequest{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, notifier.calls)
}

func TestGateService_BlockedCommandCreatesPendingRequest(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	ep := seedEndpoint(t, db, acct.ID, "host", "deploy")
	seedBlacklist(t, db, acct.ID, "rm", "sudo")
	notifier := &recordingNotifier{}
	gate, approvals := newTestGate(db, notifier)
	ctx := context.Background()

	d, err := gate.Evaluate(ctx, acct.ID, ep.ID, "rm")
	require.NoError(t, err)
	assert.True(t, d.Blocked)
	require.NotEmpty(t, d.RequestID)
	assert.Empty(t, d.Warning)

	req, err := approvals.Get(ctx, d.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, ep.ID, req.EndpointID)
	assert.Equal(t, "deploy", req.UserName)
	assert.Equal(t, "rm", req.Command)
	assert.WithinDuration(t, time.Now().UTC(), req.CreatedAt, 5*time.Second)

	status, err := approvals.CheckStatus(ctx, d.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.AgentPending, status)

	assert.Equal(t, []string{acct.ID + ":" + d.RequestID}, notifier.calls)
}

func TestGateService_EachBlockedCallCreatesFreshRow(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	ep := seedEndpoint(t, db, acct.ID, "host", "alice")
	seedBlacklist(t, db, acct.ID, "sudo")
	gate, _ := newTestGate(db, nil)

	first, err := gate.Evaluate(context.Background(), acct.ID, ep.ID, "sudo")
	require.NoError(t, err)
	second, err := gate.Evaluate(context.Background(), acct.ID, ep.ID, "sudo")
	require.NoError(t, err)
	assert.NotEqual(t, first.RequestID, second.RequestID)

	var count int64
	db.Model(&models.ApprovalRequest{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestGateService_UnknownEndpointFallsBackToUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	seedBlacklist(t, db, acct.ID, "rm")
	gate, approvals := newTestGate(db, nil)

	d, err := gate.Evaluate(context.Background(), acct.ID, "ghost-endpoint", "rm")
	require.NoError(t, err)
	assert.True(t, d.Blocked)
	assert.NotEmpty(t, d.Warning)

	req, err := approvals.Get(context.Background(), d.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.UnknownUser, req.UserName)
}

func TestGateService_EmptyBlacklistBlocksNothing(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	ep := seedEndpoint(t, db, acct.ID, "host", "alice")
	gate, _ := newTestGate(db, nil)

	d, err := gate.Evaluate(context.Background(), acct.ID, ep.ID, "rm")
	require.NoError(t, err)
	assert.False(t, d.Blocked)
}

func TestGateService_MissingFields(t *testing.T) {
	gate, _ := newTestGate(setupTestDB(t), nil)
	ctx := context.Background()

	cases := [][3]string{
		{"", "ep", "rm"},
		{"acct", "", "rm"},
		{"acct", "ep", ""},
		{"acct", "ep", "   "},
	}
	for _, c := range cases {
		_, err := gate.Evaluate(ctx, c[0], c[1], c[2])
		assert.ErrorIs(t, err, ErrMissingFields)
	}
}

func TestGateService_DenyScenario(t *testing.T) {
	db := setupTestDB(t)
	acct := seedAccount(t, db, "alice")
	ep := seedEndpoint(t, db, acct.ID, "host", "alice")
	seedBlacklist(t, db, acct.ID, "rm", "sudo")
	gate, approvals := newTestGate(db, nil)
	ctx := context.Background()

	d, err := gate.Evaluate(ctx, acct.ID, ep.ID, "rm")
	require.NoError(t, err)
	require.True(t, d.Blocked)

	status, err := approvals.Decide(ctx, d.RequestID, acct.ID, "alice", models.OutcomeDenied)
	require.NoError(t, err)
	assert.Equal(t, models.RequestDenied, status)

	agent, err := approvals.CheckStatus(ctx, d.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.AgentDenied, agent)
}
