// Package truncation bounds text payloads before they are stored or
// shipped across the wire. Oversized values keep their head and tail
// with an explicit marker, so logs show both what started and how it
// ended.
package truncation

import (
	"fmt"
	"strings"
)

// Bytes caps s at max bytes. When the cap bites, the middle is replaced
// by a marker naming how much was dropped. A max of zero or less means
// no cap.
func Bytes(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	keep := max / 2
	dropped := len(s) - 2*keep
	return s[:keep] + fmt.Sprintf("\n[... %d bytes truncated ...]\n", dropped) + s[len(s)-keep:], true
}

// Lines caps s at max lines, keeping the head and tail halves around a
// marker line. A max of zero or less means no cap.
func Lines(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s, false
	}
	head := max / 2
	tail := max - head
	dropped := len(lines) - head - tail

	out := make([]string, 0, max+1)
	out = append(out, lines[:head]...)
	out = append(out, fmt.Sprintf("[... %d lines truncated ...]", dropped))
	out = append(out, lines[len(lines)-tail:]...)
	return strings.Join(out, "\n"), true
}

// HeadTail applies the line cap first, then the byte cap, and reports
// whether either bit.
func HeadTail(s string, maxBytes, maxLines int) (string, bool) {
	byLines, truncatedLines := Lines(s, maxLines)
	byBytes, truncatedBytes := Bytes(byLines, maxBytes)
	return byBytes, truncatedLines || truncatedBytes
}
