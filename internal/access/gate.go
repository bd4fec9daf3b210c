// Package access evaluates token-gated channel access for the UI. The
// result is advisory; server-side enforcement, where it exists, lives
// outside this core.
package access

import (
	"context"

	"github.com/buidlco/clubchat/internal/chat"
	"github.com/buidlco/clubchat/internal/identity"
	"github.com/buidlco/clubchat/internal/logger"
)

// State is the outcome of an access evaluation.
type State int

const (
	// StateUnauthenticated means no session exists; the caller must
	// authenticate first.
	StateUnauthenticated State = iota
	// StateCheckFailed means the permission check itself failed; the caller
	// may retry.
	StateCheckFailed
	// StateInsufficientTokens means the member's balance is below the
	// channel policy's minimum.
	StateInsufficientTokens
	// StateDenied means the policy denies read regardless of balance.
	StateDenied
	// StateGranted means the channel content may be shown; CanWrite and
	// CanManage annotate what descendants may offer.
	StateGranted
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateCheckFailed:
		return "check-failed"
	case StateInsufficientTokens:
		return "insufficient-tokens"
	case StateDenied:
		return "denied"
	case StateGranted:
		return "granted"
	}
	return "unknown"
}

// Result carries the evaluation outcome plus the capabilities descendant
// components consult when granted.
type Result struct {
	State      State
	CanWrite   bool
	CanManage  bool
	MinBalance int64
	Balance    int64
}

// Gate performs access evaluations against the chat backend.
type Gate struct {
	svc chat.Service
	id  identity.Provider
	log *logger.Logger
}

// NewGate creates a gate over the given backend and identity provider.
func NewGate(svc chat.Service, id identity.Provider) *Gate {
	return &Gate{
		svc: svc,
		id:  id,
		log: logger.NewLogger("access-gate"),
	}
}

// Evaluate checks the current user's access to a channel. It is called once
// when a channel view mounts and again whenever the user identity or channel
// id changes.
func (g *Gate) Evaluate(ctx context.Context, channelID string) Result {
	session, err := g.id.CurrentSession(ctx)
	if err != nil {
		g.log.Warn("session lookup failed", "channel_id", channelID, "error", err)
		return Result{State: StateCheckFailed}
	}
	if !session.Authenticated {
		return Result{State: StateUnauthenticated}
	}

	decision, err := g.svc.ChannelAccess(ctx, channelID, session.UserID)
	if err != nil {
		g.log.Error("access check failed", "channel_id", channelID, "user_id", session.UserID, "error", err)
		return Result{State: StateCheckFailed}
	}

	if !decision.CanRead {
		if !decision.MeetsMinimum() {
			return Result{
				State:      StateInsufficientTokens,
				MinBalance: decision.MinBalance,
				Balance:    decision.Balance,
			}
		}
		return Result{State: StateDenied}
	}

	return Result{
		State:      StateGranted,
		CanWrite:   decision.CanWrite,
		CanManage:  decision.CanManage,
		MinBalance: decision.MinBalance,
		Balance:    decision.Balance,
	}
}
