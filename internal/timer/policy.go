package timer

import "fmt"

// CompletionPolicy decides what happens once a phase reaches zero.
type CompletionPolicy string

const (
	// PolicyAdvance flips to the opposite phase and keeps counting.
	PolicyAdvance CompletionPolicy = "advance"
	// PolicyReset returns to an idle work phase at its full duration.
	PolicyReset CompletionPolicy = "reset"
)

// ParsePolicy converts a configuration string into a CompletionPolicy.
// An empty string selects PolicyAdvance.
func ParsePolicy(raw string) (CompletionPolicy, error) {
	switch CompletionPolicy(raw) {
	case "", PolicyAdvance:
		return PolicyAdvance, nil
	case PolicyReset:
		return PolicyReset, nil
	}
	return "", fmt.Errorf("unknown completion policy %q (want %q or %q)", raw, PolicyAdvance, PolicyReset)
}
