package name

import "strings"

var commonGivenNames = map[string]bool{
	"john": true, "michael": true, "david": true, "james": true, "robert": true,
	"william": true, "mary": true, "jennifer": true, "elizabeth": true,
	"linda": true, "barbara": true,
}

var commonFamilyNames = map[string]bool{
	"smith": true, "johnson": true, "williams": true, "brown": true, "jones": true,
	"garcia": true, "miller": true, "davis": true, "rodriguez": true,
	"martinez": true, "hernandez": true,
}

// Distinctiveness scores how unambiguous a name is for name-only matching.
type Distinctiveness struct {
	Score         float64 `json:"score"`
	IsDistinctive bool    `json:"is_distinctive"`
}

// distinctiveThreshold is the minimum score for a name to count as distinctive.
const distinctiveThreshold = 2.0

// ScoreDistinctiveness rates a full name: +1 for an uncommon given name, +1
// for an uncommon family name, +1 when the name has more than two
// whitespace-separated tokens and +0.5 when a token between the first and
// the last is a single character. Token counts use the raw name, so a
// trailing suffix counts and "A." is not a bare initial. Names with fewer
// than two tokens score 0.
func ScoreDistinctiveness(full string) Distinctiveness {
	tokens := strings.Fields(full)
	if len(tokens) < 2 {
		return Distinctiveness{}
	}

	p := Parse(full)
	var score float64
	if !commonGivenNames[Fold(p.Given)] {
		score++
	}
	if !commonFamilyNames[Fold(p.Family)] {
		score++
	}

	if len(tokens) > 2 {
		score++
		for _, t := range tokens[1 : len(tokens)-1] {
			if len([]rune(t)) == 1 {
				score += 0.5
				break
			}
		}
	}

	return Distinctiveness{Score: score, IsDistinctive: score >= distinctiveThreshold}
}
