package rag

import (
	"sort"
	"strings"
	"unicode"
)

const (
	lexicalLengthScale = float32(10.0)
	maxLexicalBonus    = float32(0.2)
	sectionMatchBonus  = float32(0.05)
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {}, "what": {}, "which": {},
	"how": {}, "does": {}, "do": {},
}

// rerankLexical lowers each candidate's distance by a bounded lexical bonus,
// never below zero, and re-sorts. The sort is stable, so candidates with equal adjusted
// distance keep their vector order.
func rerankLexical(query string, candidates []Candidate) {
	queryTokens := filterStopwords(tokenize(query))
	if len(queryTokens) == 0 {
		return
	}
	for i := range candidates {
		c := &candidates[i]
		c.Distance = max(0, c.Distance-lexicalBonus(queryTokens, c.Text, c.SectionPath))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
}

// lexicalBonus scores term overlap between the query and a chunk, plus a
// bonus per query term found in the section path. The result is in
// [0, maxLexicalBonus].
func lexicalBonus(queryTokens []string, chunkText string, sectionPath []string) float32 {
	chunkTokens := tokenize(chunkText)
	if len(chunkTokens) == 0 {
		return 0
	}

	chunkFreq := make(map[string]int, len(chunkTokens))
	for _, token := range chunkTokens {
		chunkFreq[token]++
	}

	var rawMatches int
	for _, token := range queryTokens {
		rawMatches += chunkFreq[token]
	}

	score := (float32(rawMatches) / (1 + float32(len(chunkTokens)))) * lexicalLengthScale

	if headingTokens := tokenize(strings.Join(sectionPath, " ")); len(headingTokens) > 0 {
		headingSet := make(map[string]struct{}, len(headingTokens))
		for _, token := range headingTokens {
			headingSet[token] = struct{}{}
		}
		for _, token := range queryTokens {
			if _, ok := headingSet[token]; ok {
				score += sectionMatchBonus
			}
		}
	}

	if score > maxLexicalBonus {
		return maxLexicalBonus
	}
	return score
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}

	// Keep clause numbers like "4.2" whole but drop sentence dots
	fields := strings.Fields(builder.String())
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "."); f != "" {
			tokens = append(tokens, f)
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
