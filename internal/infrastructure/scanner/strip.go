package scanner

// stripComments blanks JavaScript and TypeScript comments, preserving
// newlines and byte positions so finding locations computed on the
// stripped text stay aligned with the original source. String and
// template literal contents are kept as-is: import specifiers live
// inside them.
func stripComments(src string) string {
	const (
		stateCode = iota
		stateLineComment
		stateBlockComment
		stateSingleQuote
		stateDoubleQuote
		stateTemplate
	)

	out := []byte(src)
	state := stateCode

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch state {
		case stateCode:
			switch {
			case c == '/' && i+1 < len(src) && src[i+1] == '/':
				state = stateLineComment
				out[i] = ' '
			case c == '/' && i+1 < len(src) && src[i+1] == '*':
				state = stateBlockComment
				out[i] = ' '
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '`':
				state = stateTemplate
			}
		case stateLineComment:
			if c == '\n' {
				state = stateCode
			} else {
				out[i] = ' '
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				out[i] = ' '
				i++
				out[i] = ' '
				state = stateCode
			} else if c != '\n' {
				out[i] = ' '
			}
		case stateSingleQuote:
			switch {
			case c == '\\':
				i++
			case c == '\'' || c == '\n':
				state = stateCode
			}
		case stateDoubleQuote:
			switch {
			case c == '\\':
				i++
			case c == '"' || c == '\n':
				state = stateCode
			}
		case stateTemplate:
			switch {
			case c == '\\':
				i++
			case c == '`':
				state = stateCode
			}
		}
	}
	return string(out)
}
