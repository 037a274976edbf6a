package capabilities

import "fmt"

// FromTokens parses a list of declaration tokens into a grant. Used for
// manifest capability declarations and configuration grant lists. Any
// invalid token fails the whole list so a typo cannot silently widen or
// narrow what an extension is allowed to do.
func FromTokens(tokens []string) (Grant, error) {
	g := make(Grant, 0, len(tokens))
	for i, token := range tokens {
		c, err := ParseToken(token)
		if err != nil {
			return nil, fmt.Errorf("capability token %d: %w", i, err)
		}
		g = g.Add(c)
	}
	return g, nil
}
