package security

import "time"

// BearerCredential is a signed, self-contained token minted by the Token
// Service and carried on the Bearer header. Fields mirror the JWT claims the
// Authenticator parses and validates.
type BearerCredential struct {
	Subject      string
	Issuer       string
	Audience     string
	IssuedAt     time.Time
	NotBefore    time.Time
	ExpiresAt    time.Time
	CredentialID string
	Permissions  []string
}

// HasPermission reports whether perm appears in the credential's permission set.
func (c BearerCredential) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionSet converts Permissions into the set representation used by a
// Security Context.
func (c BearerCredential) PermissionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Permissions))
	for _, p := range c.Permissions {
		set[p] = struct{}{}
	}
	return set
}

// Permission markers the Token Service attaches. RateMultiplier markers are
// dynamic ("rate_multiplier_2.0") and parsed via ratelimit.RateMultiplier.
const (
	PermissionRead         = "read"
	PermissionWrite        = "write"
	PermissionPaid         = "paid"
	PermissionProvisional  = "provisional"
	PermissionPowValidated = "pow_validated"
	PermissionAdmin        = "admin"
)
