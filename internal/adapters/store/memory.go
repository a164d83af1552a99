// Package store provides the in-memory call-history collaborator used
// by the relay binary and tests. Real persistence lives behind
// core.CallStore and is an external concern.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/peerline/peerline/internal/domain"
)

var ErrRecordNotFound = errors.New("call record not found")

type Memory struct {
	mu   sync.RWMutex
	recs map[string]domain.CallRecord
}

func NewMemory() *Memory {
	return &Memory{recs: make(map[string]domain.CallRecord)}
}

func (m *Memory) RecordCallStart(ctx context.Context, rec domain.CallRecord) (string, error) {
	rec.ID = uuid.NewString()
	m.mu.Lock()
	m.recs[rec.ID] = rec
	m.mu.Unlock()
	return rec.ID, nil
}

func (m *Memory) RecordCallUpdate(ctx context.Context, id string, upd domain.CallUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return ErrRecordNotFound
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.EndTime != nil {
		rec.EndTime = upd.EndTime
	}
	if upd.Duration != nil {
		rec.Duration = *upd.Duration
	}
	if upd.Transferred != nil {
		rec.Transferred = *upd.Transferred
	}
	if upd.TransferredTo != nil {
		rec.TransferredTo = *upd.TransferredTo
	}
	m.recs[id] = rec
	return nil
}

// Get returns a snapshot of one record.
func (m *Memory) Get(id string) (domain.CallRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[id]
	return rec, ok
}

// List snapshots all records, for the call-history surface.
func (m *Memory) List() []domain.CallRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CallRecord, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	return out
}
