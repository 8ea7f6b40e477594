package models

// Tier is the quota classification of a request.
type Tier int

const (
	// TierRestricted uses the service's shared scrape credential.
	TierRestricted Tier = iota
	// TierUnrestricted uses a caller-supplied scrape credential.
	TierUnrestricted
)

// NoLimit reports whether t is the unrestricted tier. This is the flag
// stored alongside cache rows.
func (t Tier) NoLimit() bool {
	return t == TierUnrestricted
}

// TierFromNoLimit maps a stored no_limit flag back to a Tier.
func TierFromNoLimit(noLimit bool) Tier {
	if noLimit {
		return TierUnrestricted
	}
	return TierRestricted
}

func (t Tier) String() string {
	if t == TierUnrestricted {
		return "unrestricted"
	}
	return "restricted"
}
