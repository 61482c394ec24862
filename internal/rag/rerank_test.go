package rag

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestLexicalBonusBasicMatch(t *testing.T) {
	query := filterStopwords(tokenize("Risk management process"))
	chunk := "Risk management requires a documented process. The process covers the life cycle."
	score := lexicalBonus(query, chunk, []string{"4 General", "4.2 Risk Management"})

	if score <= 0 {
		t.Fatalf("expected score to be positive, got %f", score)
	}
	if score > maxLexicalBonus {
		t.Fatalf("score should be clamped to maxLexicalBonus, got %f", score)
	}
}

func TestLexicalBonusSectionOnly(t *testing.T) {
	query := filterStopwords(tokenize("biocompatibility"))
	chunk := "General context without the keyword."
	score := lexicalBonus(query, chunk, []string{"Annex A", "Biocompatibility"})

	if math.Abs(float64(score-sectionMatchBonus)) > 0.0001 {
		t.Fatalf("expected section bonus only (%f), got %f", sectionMatchBonus, score)
	}
}

func TestLexicalBonusNormalization(t *testing.T) {
	query := filterStopwords(tokenize("hazard"))
	chunk := "hazard " + strings.Repeat(" filler", 200)
	score := lexicalBonus(query, chunk, nil)

	if score <= 0 {
		t.Fatalf("expected normalized score to stay positive, got %f", score)
	}
	if score > maxLexicalBonus {
		t.Fatalf("expected score to be clamped to %f, got %f", maxLexicalBonus, score)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Clause 4.2 applies.", []string{"clause", "4.2", "applies"}},
		{"ISO/IEC 62304:2006", []string{"iso", "iec", "62304", "2006"}},
		{"...", nil},
	}
	for _, tt := range tests {
		if got := tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilterStopwords(t *testing.T) {
	if got := filterStopwords(tokenize("what is the scope of")); !reflect.DeepEqual(got, []string{"scope"}) {
		t.Errorf("filterStopwords() = %q", got)
	}
	if got := filterStopwords(tokenize("the and of")); got != nil {
		t.Errorf("expected nil for stopwords only, got %q", got)
	}
}

func TestRerankLexical(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: "unrelated", Text: "Packaging shall protect the device.", Distance: 0.30},
		{ChunkID: "match", Text: "Risk management requires a documented process.", Distance: 0.32},
		{ChunkID: "tie", Text: "Labels shall be legible.", Distance: 0.30},
	}

	rerankLexical("risk management process", candidates)

	var order []string
	for i, c := range candidates {
		order = append(order, c.ChunkID)
		if i > 0 && c.Distance < candidates[i-1].Distance {
			t.Fatalf("candidates not sorted by distance: %+v", candidates)
		}
	}
	if !reflect.DeepEqual(order, []string{"match", "unrelated", "tie"}) {
		t.Errorf("order = %v", order)
	}
	if candidates[1].Distance != 0.30 {
		t.Errorf("non-matching candidate distance changed: %f", candidates[1].Distance)
	}
}

func TestRerankLexicalStopwordQueryIsNoop(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: "a", Text: "the", Distance: 0.5},
		{ChunkID: "b", Text: "of", Distance: 0.1},
	}
	rerankLexical("the of", candidates)
	if candidates[0].ChunkID != "a" {
		t.Error("stopword-only query should not reorder candidates")
	}
}

func TestRerankLexicalDistanceNeverNegative(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: "near", Text: "Risk management process for risk control.", SectionPath: []string{"4.2 Risk Management"}, Distance: 0.02},
		{ChunkID: "exact", Text: "Risk management process.", SectionPath: []string{"Risk Management Process"}, Distance: 0},
		{ChunkID: "far", Text: "Packaging and labels.", Distance: 0.6},
	}
	rerankLexical("risk management process", candidates)

	for i, c := range candidates {
		if c.Distance < 0 {
			t.Errorf("candidate %s has negative distance %f", c.ChunkID, c.Distance)
		}
		if i > 0 && c.Distance < candidates[i-1].Distance {
			t.Errorf("candidates not in ascending distance at %d", i)
		}
	}
	if candidates[2].ChunkID != "far" {
		t.Errorf("unrelated chunk should stay last, got order %s, %s, %s",
			candidates[0].ChunkID, candidates[1].ChunkID, candidates[2].ChunkID)
	}
}
