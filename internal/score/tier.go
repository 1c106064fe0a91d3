package score

// Tier is the ordered severity scale.
type Tier int

const (
	TierNone Tier = iota
	TierMild
	TierSerious
)

func (t Tier) String() string {
	switch t {
	case TierMild:
		return "mild"
	case TierSerious:
		return "serious"
	default:
		return "none"
	}
}

// ParseTier maps a tier name onto the scale; unknown names map to none.
func ParseTier(s string) Tier {
	switch s {
	case "mild":
		return TierMild
	case "serious":
		return TierSerious
	default:
		return TierNone
	}
}

// MaxTier returns the higher of two tiers.
func MaxTier(a, b Tier) Tier {
	if a > b {
		return a
	}
	return b
}

// Score is a severity verdict with its contributing evidence. The tier is
// monotonic in the contributions: adding a matched keyword or a classifier
// hit never lowers it.
type Score struct {
	Tier     Tier
	Evidence []string
}
