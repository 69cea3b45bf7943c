package fields

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/publication"
)

// genericTerms are words too common in academic titles to say anything about
// a research area.
var genericTerms = map[string]bool{
	"study": true, "analysis": true, "research": true, "model": true, "method": true,
	"using": true, "approach": true, "based": true, "results": true, "paper": true,
	"work": true, "data": true, "novel": true, "towards": true, "evaluation": true,
	"review": true, "performance": true,
}

var stopwords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "against": true,
	"also": true, "among": true, "been": true, "before": true, "being": true,
	"below": true, "between": true, "both": true, "does": true, "doing": true,
	"during": true, "each": true, "from": true, "further": true, "have": true,
	"having": true, "here": true, "into": true, "more": true, "most": true,
	"only": true, "other": true, "over": true, "same": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "under": true, "until": true,
	"very": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "will": true, "with": true, "within": true,
	"without": true, "would": true, "your": true,
}

// KeywordScore is one extracted keyword with its accumulated weight.
type KeywordScore struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
	Count   int     `json:"count"`
}

// ExtractKeywords weighs the defined keywords, title words and abstract words
// of a researcher's publications and returns the strongest, best first.
func ExtractKeywords(pubs []publication.Authored, w config.KeywordWeights) []KeywordScore {
	acc := make(map[string]*KeywordScore)
	add := func(kw string, weight float64) {
		if !usableKeyword(kw, w.MinLength) {
			return
		}
		ks, ok := acc[kw]
		if !ok {
			ks = &KeywordScore{Keyword: kw}
			acc[kw] = ks
		}
		ks.Score += weight
		ks.Count++
	}

	for i := range pubs {
		p := &pubs[i]
		for _, kw := range p.Keywords() {
			add(strings.ToLower(strings.TrimSpace(kw)), w.DefinedKeyword)
		}
		for _, word := range words(p.Title) {
			add(word, w.TitleWord)
		}
		for _, word := range words(p.Abstract) {
			add(word, w.AbstractWord)
		}
	}

	out := make([]KeywordScore, 0, len(acc))
	for _, ks := range acc {
		if ks.Count < w.MinCount {
			continue
		}
		out = append(out, *ks)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Keyword < out[j].Keyword
	})
	if w.MaxPerResearcher > 0 && len(out) > w.MaxPerResearcher {
		out = out[:w.MaxPerResearcher]
	}
	return out
}

func usableKeyword(kw string, minLength int) bool {
	if len([]rune(kw)) < minLength {
		return false
	}
	return !genericTerms[kw] && !stopwords[kw]
}

// words lower-cases text, splits it on whitespace and strips everything but
// letters and digits from each word.
func words(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		w := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, f)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
