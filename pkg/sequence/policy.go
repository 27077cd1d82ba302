package sequence

import "fmt"

// Policy controls how a validator recovers when it detects a sequence gap.
type Policy int

const (
	// PolicyWarnAndContinue resynchronizes to the received sequence after
	// reporting the gap. Behaviorally identical to PolicyContinue; callers are
	// expected to log the returned GapError at warn level. This is the default.
	PolicyWarnAndContinue Policy = iota

	// PolicyContinue silently resynchronizes to the received sequence after
	// reporting the gap.
	PolicyContinue

	// PolicyHalt stops advancing the thread's state until it is explicitly
	// reset. Every further validation of a halted thread keeps failing against
	// the same expected value.
	PolicyHalt
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyWarnAndContinue:
		return "warn-and-continue"
	case PolicyContinue:
		return "continue"
	case PolicyHalt:
		return "halt"
	default:
		return fmt.Sprintf("unknown-policy(%d)", int(p))
	}
}

// ParsePolicy parses a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "warn-and-continue", "":
		return PolicyWarnAndContinue, nil
	case "continue":
		return PolicyContinue, nil
	case "halt":
		return PolicyHalt, nil
	default:
		return PolicyWarnAndContinue, fmt.Errorf("unknown gap recovery policy: %q", s)
	}
}
