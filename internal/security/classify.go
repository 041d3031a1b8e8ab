package security

import "strings"

// EndpointClass selects which pair of rate-limit thresholds applies to a
// request.
type EndpointClass int

const (
	// ClassStandard covers ordinary storefront traffic.
	ClassStandard EndpointClass = iota
	// ClassAuthSensitive covers login, registration, and admin paths. These
	// always get the stricter thresholds, regardless of who is calling: an
	// admin hitting /admin is limited by the auth-sensitive budget unless
	// the admin exemption applies.
	ClassAuthSensitive
)

func (c EndpointClass) String() string {
	if c == ClassAuthSensitive {
		return "auth_sensitive"
	}
	return "standard"
}

// ClassifyEndpoint tags a request path. Classification looks only at the
// path, never at the caller's role.
func ClassifyEndpoint(path string) EndpointClass {
	p := strings.ToLower(path)
	if strings.HasPrefix(p, "/admin") {
		return ClassAuthSensitive
	}
	if strings.Contains(p, "login") || strings.Contains(p, "register") {
		return ClassAuthSensitive
	}
	return ClassStandard
}
