package riot

import "strings"

// Tier is a ranked tier. Order matches the GLOSSARY's tier progression.
type Tier string

const (
	TierIron        Tier = "IRON"
	TierBronze      Tier = "BRONZE"
	TierSilver      Tier = "SILVER"
	TierGold        Tier = "GOLD"
	TierPlatinum    Tier = "PLATINUM"
	TierDiamond     Tier = "DIAMOND"
	TierMaster      Tier = "MASTER"
	TierGrandmaster Tier = "GRANDMASTER"
	TierChallenger  Tier = "CHALLENGER"
)

// Division is a sub-tier rank; apex tiers have no division.
type Division string

const (
	DivisionI    Division = "I"
	DivisionII   Division = "II"
	DivisionIII  Division = "III"
	DivisionIV   Division = "IV"
)

// TierOrder ranks tiers for comparison, mirroring the teacher's TierOrder
// map (there indexed IRON=0..CHALLENGER=9 over League tiers; here over the
// TFT tier set, which shares the same names).
var TierOrder = map[Tier]int{
	TierIron:        0,
	TierBronze:      1,
	TierSilver:      2,
	TierGold:        3,
	TierPlatinum:    4,
	TierDiamond:     5,
	TierMaster:      6,
	TierGrandmaster: 7,
	TierChallenger:  8,
}

// DivisionOrder ranks divisions for comparison, IV (lowest) to I (highest).
var DivisionOrder = map[Division]int{
	DivisionIV:  0,
	DivisionIII: 1,
	DivisionII:  2,
	DivisionI:   3,
}

// ApexTiers is the ordered set of tiers enumerated as flat leagues (no
// division subdivision), per §4.4 DISCOVER_PLAYERS.
var ApexTiers = []Tier{TierChallenger, TierGrandmaster, TierMaster}

// DividedTiers is the ordered set of tiers enumerated tier x division, from
// highest to lowest.
var DividedTiers = []Tier{
	TierDiamond, TierPlatinum, TierGold, TierSilver, TierBronze, TierIron,
}

// AllDivisions is division I..IV in descending rank order.
var AllDivisions = []Division{DivisionI, DivisionII, DivisionIII, DivisionIV}

// IsApexTier reports whether tier is enumerated as a flat league rather than
// tier x division.
func IsApexTier(tier Tier) bool {
	switch tier {
	case TierChallenger, TierGrandmaster, TierMaster:
		return true
	default:
		return false
	}
}

// ParseTier normalizes a Riot API tier string (which is returned uppercase)
// into a Tier, returning ok=false for unrecognized values.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if _, known := TierOrder[t]; known {
		return t, true
	}
	return "", false
}

// ParseDivision normalizes a Riot API rank string into a Division.
func ParseDivision(s string) (Division, bool) {
	d := Division(strings.ToUpper(strings.TrimSpace(s)))
	if _, known := DivisionOrder[d]; known {
		return d, true
	}
	return "", false
}

// Bucket identifies one cell of the ranked matrix the Collection Engine's
// DISCOVER_PLAYERS stage walks. Division is empty for apex tiers.
type Bucket struct {
	Tier     Tier
	Division Division
}

// String renders the bucket as a stable cursor token, e.g. "GOLD/II" or
// "CHALLENGER", used as the Checkpoint's cursorTierDivision.
func (b Bucket) String() string {
	if IsApexTier(b.Tier) {
		return string(b.Tier)
	}
	return string(b.Tier) + "/" + string(b.Division)
}

// Matrix enumerates every bucket the Collection Engine must walk, apex
// tiers first (they are cheap, single-request fetches), then divided tiers
// from Diamond down to Iron, each in division I..IV order. tiers, if
// non-empty, restricts enumeration to the given subset (collection.tiers
// config option); an empty slice means "all tiers".
func Matrix(tiers []Tier) []Bucket {
	allowed := func(t Tier) bool {
		if len(tiers) == 0 {
			return true
		}
		for _, want := range tiers {
			if want == t {
				return true
			}
		}
		return false
	}

	var buckets []Bucket
	for _, t := range ApexTiers {
		if allowed(t) {
			buckets = append(buckets, Bucket{Tier: t})
		}
	}
	for _, t := range DividedTiers {
		if !allowed(t) {
			continue
		}
		for _, d := range AllDivisions {
			buckets = append(buckets, Bucket{Tier: t, Division: d})
		}
	}
	return buckets
}

// ResumeFrom returns the sub-slice of a matrix starting at (and including)
// the bucket matching cursor, for resuming DISCOVER_PLAYERS from a
// checkpoint. If cursor is empty or not found, the full matrix is returned.
func ResumeFrom(matrix []Bucket, cursor string) []Bucket {
	if cursor == "" {
		return matrix
	}
	for i, b := range matrix {
		if b.String() == cursor {
			return matrix[i:]
		}
	}
	return matrix
}
