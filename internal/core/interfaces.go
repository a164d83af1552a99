// Package core holds the interfaces the call engine and relay are
// built against. Adapters own the concrete resources behind them.
package core

import (
	"context"

	"github.com/peerline/peerline/internal/domain"
)

// Frame is a raw wire payload (a marshaled envelope or control event).
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Signaler delivers envelopes to the relay on behalf of the local user.
// The relay stamps the sender, so envelopes are handed over without one.
type Signaler interface {
	Send(domain.Envelope) error
}

// Notifier is the user-visible event surface (toasts in the UI).
type Notifier interface {
	Notify(title, detail string)
	NotifyError(title, detail string)
}

// CallStore persists call history. Failures are logged by the caller
// and never block or abort a call.
type CallStore interface {
	RecordCallStart(ctx context.Context, rec domain.CallRecord) (string, error)
	RecordCallUpdate(ctx context.Context, id string, upd domain.CallUpdate) error
}

// CredentialSource provides short-lived relay (TURN) credentials.
// Implementations fall back to a static default set on failure.
type CredentialSource interface {
	RelayCredentials(ctx context.Context) (domain.RelayCredentials, error)
}
