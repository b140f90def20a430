package compiler

import (
	"fmt"
	"strings"
)

// Policy decides what an unsupported node does to a compile.
type Policy int

const (
	// Lenient logs the node, substitutes an absent value and keeps going.
	// The artifact may be unsound; post-compile validation catches that.
	Lenient Policy = iota

	// Strict rejects the whole compile if any node was unsupported.
	Strict
)

func (p Policy) String() string {
	switch p {
	case Lenient:
		return "lenient"
	case Strict:
		return "strict"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses "lenient" or "strict".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	}
	return Lenient, fmt.Errorf("unknown policy %q (want lenient or strict)", s)
}
