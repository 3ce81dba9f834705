package model

import "github.com/rotisserie/eris"

// Confidence is the trust tier attached to externally retrieved facts.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// rank orders tiers low < medium < high. Unknown values rank below low so
// they never satisfy any floor.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether c meets or exceeds the given floor.
func (c Confidence) AtLeast(min Confidence) bool {
	return c.rank() >= min.rank()
}

// Valid reports whether c is one of the three known tiers.
func (c Confidence) Valid() bool {
	return c.rank() > 0
}

// ParseConfidence validates a caller-supplied confidence floor. Only high
// and medium make sense as floors; low would admit everything.
func ParseConfidence(s string) (Confidence, error) {
	switch Confidence(s) {
	case ConfidenceHigh:
		return ConfidenceHigh, nil
	case ConfidenceMedium:
		return ConfidenceMedium, nil
	case "":
		return ConfidenceMedium, nil
	default:
		return "", eris.Errorf("invalid minimum confidence %q (want high or medium)", s)
	}
}
