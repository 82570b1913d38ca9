package services

import (
	"math/rand"
	"regexp"
	"strings"
)

// spintaxPattern matches the innermost [opt1|opt2|...] group. The character
// classes exclude brackets so nested groups resolve inside-out.
var spintaxPattern = regexp.MustCompile(`\[([^\[\]]*\|[^\[\]]*)\]`)

// maxSpintaxPasses bounds expansion so a pathological template cannot spin
// forever.
const maxSpintaxPasses = 64

// ApplySpintax substitutes {firstname} and expands [a|b|c] alternation
// groups, choosing one option per group at random. Text without either
// construct passes through unchanged.
func ApplySpintax(text, firstname string) string {
	if firstname != "" {
		text = strings.ReplaceAll(text, "{firstname}", firstname)
	}
	for i := 0; i < maxSpintaxPasses; i++ {
		loc := spintaxPattern.FindStringSubmatchIndex(text)
		if loc == nil {
			break
		}
		options := strings.Split(text[loc[2]:loc[3]], "|")
		choice := strings.TrimSpace(options[rand.Intn(len(options))])
		text = text[:loc[0]] + choice + text[loc[1]:]
	}
	return text
}
