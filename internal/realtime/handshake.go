package realtime

import (
	"fmt"
	"sync/atomic"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/google/uuid"
)

// ErrBadTransition reports a lifecycle step taken out of order.
var ErrBadTransition = apperr.New(apperr.CodeInternal, "invalid connection state transition")

// Handshake carries a socket through the states it holds before it is
// registered: Connecting, Authenticating, then Rejected or, through Complete,
// a registered Connection in StateConnected.
type Handshake struct {
	state atomic.Int32
}

func NewHandshake() *Handshake {
	h := &Handshake{}
	h.state.Store(int32(StateConnecting))
	return h
}

func (h *Handshake) State() State {
	return State(h.state.Load())
}

func (h *Handshake) advance(from, to State) error {
	if !h.state.CompareAndSwap(int32(from), int32(to)) {
		return apperr.Wrap(fmt.Errorf("%s -> %s from %s", from, to, h.State()), apperr.CodeInternal, ErrBadTransition.Message)
	}
	return nil
}

// Authenticate marks the upgrade done and the credentials under check.
func (h *Handshake) Authenticate() error {
	return h.advance(StateConnecting, StateAuthenticating)
}

// Reject ends a handshake whose credentials failed.
func (h *Handshake) Reject() error {
	return h.advance(StateAuthenticating, StateRejected)
}

// Complete registers the authenticated socket with r.
func (h *Handshake) Complete(r *Registry, socket Socket, userID uuid.UUID) (*Connection, error) {
	if err := h.advance(StateAuthenticating, StateConnected); err != nil {
		return nil, err
	}
	return r.Connect(socket, userID), nil
}
