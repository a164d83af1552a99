package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerline/peerline/internal/domain"
)

func TestRecordLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := m.RecordCallStart(ctx, domain.CallRecord{
		CallerID:    "alice",
		RecipientID: "bob",
		StartTime:   start,
		Status:      domain.RecordMissed,
		CallType:    domain.MediaAudio,
		Encrypted:   true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.RecordMissed, rec.Status)
	assert.Equal(t, id, rec.ID)

	end := start.Add(90 * time.Second)
	completed := domain.RecordCompleted
	duration := 90
	require.NoError(t, m.RecordCallUpdate(ctx, id, domain.CallUpdate{
		Status:   &completed,
		EndTime:  &end,
		Duration: &duration,
	}))

	rec, ok = m.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.RecordCompleted, rec.Status)
	require.NotNil(t, rec.EndTime)
	assert.True(t, rec.EndTime.Equal(end))
	assert.Equal(t, 90, rec.Duration)
	// Untouched fields survive partial updates.
	assert.Equal(t, domain.UserID("alice"), rec.CallerID)
	assert.True(t, rec.Encrypted)
}

func TestUpdateUnknownRecord(t *testing.T) {
	m := NewMemory()
	status := domain.RecordCompleted
	err := m.RecordCallUpdate(context.Background(), "missing", domain.CallUpdate{Status: &status})
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestTransferUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.RecordCallStart(ctx, domain.CallRecord{CallerID: "alice", RecipientID: "bob", Status: domain.RecordMissed})
	require.NoError(t, err)

	transferred := true
	target := domain.UserID("carol")
	require.NoError(t, m.RecordCallUpdate(ctx, id, domain.CallUpdate{
		Transferred:   &transferred,
		TransferredTo: &target,
	}))

	rec, _ := m.Get(id)
	assert.True(t, rec.Transferred)
	assert.Equal(t, domain.UserID("carol"), rec.TransferredTo)
}

func TestListSnapshots(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	assert.Empty(t, m.List())

	_, err := m.RecordCallStart(ctx, domain.CallRecord{CallerID: "alice", RecipientID: "bob"})
	require.NoError(t, err)
	_, err = m.RecordCallStart(ctx, domain.CallRecord{CallerID: "carol", RecipientID: "dave"})
	require.NoError(t, err)

	assert.Len(t, m.List(), 2)
}
