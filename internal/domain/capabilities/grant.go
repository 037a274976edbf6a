package capabilities

// Grant is a set of capabilities held by an extension.
type Grant []Capability

// NewGrant creates a grant from the given capabilities, dropping duplicates.
func NewGrant(caps ...Capability) Grant {
	g := make(Grant, 0, len(caps))
	for _, c := range caps {
		g = g.Add(c)
	}
	return g
}

// Add returns a grant containing the capability. The receiver is returned
// unchanged when the capability is already present.
func (g Grant) Add(c Capability) Grant {
	for _, existing := range g {
		if existing.Equals(c) {
			return g
		}
	}
	return append(g, c)
}

// Contains reports whether the grant holds a capability that exactly
// equals c. Pattern matching for requests lives in Matches.
func (g Grant) Contains(c Capability) bool {
	for _, existing := range g {
		if existing.Equals(c) {
			return true
		}
	}
	return false
}

// Covers reports whether any capability in the grant matches the request.
func (g Grant) Covers(request Capability) bool {
	for _, granted := range g {
		if Matches(request, granted) {
			return true
		}
	}
	return false
}

// CoversKind reports whether the grant holds any capability of the kind.
func (g Grant) CoversKind(kind Kind) bool {
	for _, existing := range g {
		if existing.Kind == kind {
			return true
		}
	}
	return false
}

// Remove returns a grant without any capability equal to c.
func (g Grant) Remove(c Capability) Grant {
	out := make(Grant, 0, len(g))
	for _, existing := range g {
		if !existing.Equals(c) {
			out = append(out, existing)
		}
	}
	return out
}

// Tokens returns the token form of every capability, in grant order.
func (g Grant) Tokens() []string {
	tokens := make([]string, 0, len(g))
	for _, c := range g {
		tokens = append(tokens, c.String())
	}
	return tokens
}
