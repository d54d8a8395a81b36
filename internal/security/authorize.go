package security

import (
	"errors"

	"matrix-commission-backend/internal/config"
)

var (
	ErrForbidden = errors.New("insufficient role for this operation")
	ErrNotOwner  = errors.New("caller may only access their own records")
)

// Authorize checks the roles in claims against the level a route requires.
// Admins pass every level.
func Authorize(level config.SecurityLevel, claims *UserClaims) error {
	if level == config.SecurityPublic || claims.HasRole(RoleAdmin) {
		return nil
	}
	switch level {
	case config.SecurityMember:
		if claims.HasRole(RoleMember) {
			return nil
		}
	case config.SecurityPayments:
		if claims.HasRole(RolePayments) {
			return nil
		}
	}
	return ErrForbidden
}

// AuthorizeOwner lets admins through and otherwise requires the caller to be userID.
func AuthorizeOwner(claims *UserClaims, userID int64) error {
	if claims.HasRole(RoleAdmin) || claims.UserID == userID {
		return nil
	}
	return ErrNotOwner
}
