package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SubjectKey returns the identity used to decide whether two events are about
// the same player. External names are NFC-normalized, case-folded and
// whitespace-collapsed so "José  Díaz" and "JOSÉ DÍAZ" collide.
// Returns "" for subject-less events.
func SubjectKey(s Subject) string {
	switch {
	case s.PlayerID != "":
		return "player:" + s.PlayerID
	case s.IsExternal():
		return "external:" + normalizeName(s.ExternalPlayerName) + "#" + strings.TrimSpace(s.ExternalPlayerNumber)
	default:
		return ""
	}
}

func normalizeName(name string) string {
	name = norm.NFC.String(name)
	// Casers are stateful, so each call gets its own.
	name = cases.Fold().String(name)
	return strings.Join(strings.Fields(name), " ")
}
