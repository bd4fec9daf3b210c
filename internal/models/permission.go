package models

// Member represents a user's membership in a club, carrying the role and
// token balance used for permission gating.
type Member struct {
	ClubID       string `json:"club_id"`
	UserID       string `json:"user_id"`
	Role         string `json:"role"` // admin, member
	TokenBalance int64  `json:"token_balance"`
	JoinedAt     int64  `json:"joined_at"`
}

// ChannelPermission associates a (channel, role) pair with a minimum token
// balance and three capability flags. A user's effective capability is the
// flag ANDed with balance >= MinTokenBalance.
type ChannelPermission struct {
	ChannelID       string `json:"channel_id"`
	Role            string `json:"role"`
	MinTokenBalance int64  `json:"min_token_balance"`
	CanRead         bool   `json:"can_read"`
	CanWrite        bool   `json:"can_write"`
	CanManage       bool   `json:"can_manage"`
}

// AccessDecision is the result of evaluating a member against a channel's
// permission policy. Balance and MinBalance are carried so callers can tell
// an insufficient-token denial apart from a policy denial.
type AccessDecision struct {
	CanRead    bool  `json:"can_read"`
	CanWrite   bool  `json:"can_write"`
	CanManage  bool  `json:"can_manage"`
	Balance    int64 `json:"balance"`
	MinBalance int64 `json:"min_balance"`
}

// MeetsMinimum reports whether the member's balance clears the policy
// threshold.
func (d AccessDecision) MeetsMinimum() bool {
	return d.Balance >= d.MinBalance
}

// Evaluate applies a permission policy to a member's token balance. All
// three capabilities are gated by the same balance check.
func (p ChannelPermission) Evaluate(balance int64) AccessDecision {
	meets := balance >= p.MinTokenBalance
	return AccessDecision{
		CanRead:    p.CanRead && meets,
		CanWrite:   p.CanWrite && meets,
		CanManage:  p.CanManage && meets,
		Balance:    balance,
		MinBalance: p.MinTokenBalance,
	}
}

// DefaultAccess is the fail-open decision applied when no policy row exists
// for a member's role: full read and write, no manage. This is a deliberate
// usability-over-strictness tradeoff so operators who forget to configure a
// channel's policy do not lock their members out.
func DefaultAccess(balance int64) AccessDecision {
	return AccessDecision{
		CanRead:  true,
		CanWrite: true,
		Balance:  balance,
	}
}
