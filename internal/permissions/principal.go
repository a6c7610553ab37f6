package permissions

import (
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
)

// Principal is the authenticated actor behind a request. A nil Principal
// is an anonymous caller. The two concrete variants are UserPrincipal and
// APIKeyPrincipal; permission evaluation matches over the three cases
// rather than probing attributes.
type Principal interface {
	principal()
}

// UserPrincipal wraps an authenticated human user.
type UserPrincipal struct {
	User *models.User
}

func (UserPrincipal) principal() {}

// Elevated reports whether the user is admin or staff.
func (p UserPrincipal) Elevated() bool {
	return p.User.AccountType.IsElevated()
}

// APIKeyPrincipal wraps a request authenticated by an API key. An API key
// has no authority outside its own workspace.
type APIKeyPrincipal struct {
	Key *models.APIKey
}

func (APIKeyPrincipal) principal() {}

// PrincipalID returns a stable identifier for audit records, or uuid.Nil
// for anonymous callers.
func PrincipalID(p Principal) uuid.UUID {
	switch v := p.(type) {
	case UserPrincipal:
		return v.User.ID
	case APIKeyPrincipal:
		return v.Key.ID
	default:
		return uuid.Nil
	}
}
