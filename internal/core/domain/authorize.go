package domain

import "fmt"

// Action enumerates the engine operations that carry an authorization rule.
type Action string

const (
	ActionCreateAuction  Action = "create_auction"
	ActionSubmitBid      Action = "submit_bid"
	ActionCancelAuction  Action = "cancel_auction"
	ActionForceStatus    Action = "force_status"
	ActionViewFullBids   Action = "view_full_bids"
	ActionViewDealerBids Action = "view_dealer_bids"
	ActionAdminRead      Action = "admin_read"
	ActionManageUsers    Action = "manage_users"
)

// Authorize is a pure function of (role, ownership). ownerID is the user the
// target resource belongs to (buyer of an auction, dealer of a bid list) and may
// be empty when ownership is irrelevant.
func Authorize(id Identity, action Action, ownerID string) error {
	owns := ownerID != "" && id.UserID == ownerID

	var ok bool
	switch id.Role {
	case RoleAdmin:
		ok = action != ActionCreateAuction && action != ActionSubmitBid
	case RoleBuyer:
		switch action {
		case ActionCreateAuction:
			ok = true
		case ActionCancelAuction, ActionViewFullBids:
			ok = owns
		}
	case RoleDealer:
		switch action {
		case ActionSubmitBid:
			if !id.Verified {
				return fmt.Errorf("%w: dealer account is not verified", ErrAuthorization)
			}
			ok = true
		case ActionViewDealerBids:
			ok = owns
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrAuthorization, id.Role)
	}

	if !ok {
		return fmt.Errorf("%w: %s may not %s", ErrAuthorization, id.Role, action)
	}
	return nil
}
