package call

import (
	"context"
	"errors"

	"github.com/peerline/peerline/internal/domain"
)

var (
	ErrNoActiveCall      = errors.New("no active call to transfer")
	ErrBadTransferTarget = errors.New("transfer target must differ from both participants")
)

// Coordinator validates and drives handing an active call to a third
// party. It holds no state: the current peer is notified and the link
// torn down by the session, and the fresh call toward the target is
// initiated separately once the UI selects to call it.
type Coordinator struct{}

func (Coordinator) Transfer(ctx context.Context, s *Session, targetID domain.UserID, targetName string) error {
	if s.Status() != domain.StatusConnected {
		return ErrNoActiveCall
	}
	if targetID == "" || targetID == s.LocalID() || targetID == s.RemoteID() {
		return ErrBadTransferTarget
	}
	return s.TransferCall(ctx, targetID, targetName)
}
