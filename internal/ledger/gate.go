package ledger

import "github.com/frahmantamala/payroll-ledger/internal"

// Gate holds every role decision of the payroll domain.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) CanSettle(role internal.Role) bool {
	return role == internal.RoleEmployer
}

func (g *Gate) AuthorizeSettlement(requester *internal.User) error {
	if requester == nil || !g.CanSettle(requester.Role) {
		return internal.ErrUnauthorizedSettlement
	}
	return nil
}

// CanView allows employees to see their own balance only; employers see everyone.
func (g *Gate) CanView(requester *internal.User, targetUserID int64) bool {
	if requester == nil {
		return false
	}
	if g.CanSettle(requester.Role) {
		return true
	}
	return requester.ID == targetUserID
}
