package auth

// Require admits p when its role is one of allowed. It never consults the
// session store; callers run it after Authenticate.
func Require(p Principal, allowed ...string) error {
	if p.HasRole(allowed...) {
		return nil
	}
	return &DenyError{Role: p.Role, Allowed: append([]string(nil), allowed...)}
}
