package expansion

import "strings"

// modifierGrammar is the fixed modifier set from  Stage Universe →
// Tier2. "for <segment>" and "{year}" are templated; the rest are applied
// as simple prefix/suffix combinations.
var modifierGrammar = []string{"best", "top", "guide", "vs", "alternatives", "cheap", "review"}

// segments stands in for the "<segment>" template token: a small set of
// common audience/use-case qualifiers, since the expansion engine has no
// per-run audience input to draw from.
var segments = []string{"small business", "beginners", "enterprise"}

// applyModifiers generates modifier-grammar variations of phrase,
// discarding any result shorter than 2 tokens.
func applyModifiers(phrase string, year int) []string {
	var out []string
	for _, mod := range modifierGrammar {
		var variant string
		switch mod {
		case "vs":
			variant = phrase + " vs alternatives"
		default:
			variant = mod + " " + phrase
		}
		if lengthTokens(variant) >= 2 {
			out = append(out, variant)
		}
	}
	for _, seg := range segments {
		variant := phrase + " for " + seg
		if lengthTokens(variant) >= 2 {
			out = append(out, variant)
		}
	}
	if year > 0 {
		variant := phrase + " " + itoa(year)
		if lengthTokens(variant) >= 2 {
			out = append(out, variant)
		}
	}
	return out
}

// questionPatterns is the fixed set of Tier3 question-pattern prefixes
// ( Stage Universe → Tier3).
var questionPatterns = []string{"what is", "how to", "why", "when to", "where", "which"}

// longTailPrefixes are prepositional/modifier refinements applied to a
// Tier2 phrase to produce Tier3 long-tail candidates.
var longTailPrefixes = []string{"benefits of", "cost of", "examples of", "steps to"}

func applyQuestionPatterns(phrase string) []string {
	out := make([]string, 0, len(questionPatterns))
	for _, q := range questionPatterns {
		out = append(out, q+" "+phrase)
	}
	return out
}

func applyLongTail(phrase string) []string {
	out := make([]string, 0, len(longTailPrefixes))
	for _, p := range longTailPrefixes {
		out = append(out, p+" "+phrase)
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
