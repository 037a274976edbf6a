package capabilities

import "strings"

// Matches reports whether a granted capability satisfies a request.
// Kinds must match exactly. An empty or universal grant pattern covers
// every request of the kind; otherwise the request pattern must match
// the grant pattern exactly or through its single wildcard: a trailing
// "*" matches by prefix ("read:/workspace/*"), a leading "*" matches by
// suffix ("http:*.example.com"). A leading-wildcard host grant covers
// subdomains only; the bare apex needs its own grant.
func Matches(request, granted Capability) bool {
	if request.Kind != granted.Kind {
		return false
	}
	return matchPattern(request.Pattern, granted.Pattern)
}

func matchPattern(requested, granted string) bool {
	if granted == "" || granted == "*" {
		return true
	}
	if requested == granted {
		return true
	}
	if strings.HasSuffix(granted, "*") {
		prefix := strings.TrimSuffix(granted, "*")
		return strings.HasPrefix(requested, prefix)
	}
	if strings.HasPrefix(granted, "*") {
		suffix := strings.TrimPrefix(granted, "*")
		return strings.HasSuffix(requested, suffix)
	}
	return false
}
