// Package diversity provides an experimental block scoring lexical
// diversity across text variations.
package diversity

import (
	"context"
	"strings"
)

// Block computes a pairwise dissimilarity score over a list-valued state
// field. A single text has no diversity and scores 0.
type Block struct {
	FieldName string
}

func NewBlock(config map[string]any) (*Block, error) {
	fieldName, _ := config["field_name"].(string)
	if fieldName == "" {
		fieldName = "assistant"
	}

	return &Block{FieldName: fieldName}, nil
}

func (b *Block) Execute(_ context.Context, state map[string]any) (map[string]any, error) {
	var texts []string

	if raw, ok := state[b.FieldName].([]any); ok {
		for _, item := range raw {
			if text, ok := item.(string); ok {
				texts = append(texts, text)
			}
		}
	}

	return map[string]any{"diversity_score": listDiversity(texts)}, nil
}

func listDiversity(texts []string) float64 {
	if len(texts) < 2 {
		return 0.0
	}

	var total float64

	var pairs int

	for i := range texts {
		for j := i + 1; j < len(texts); j++ {
			total += 1 - bigramSimilarity(texts[i], texts[j])
			pairs++
		}
	}

	return total / float64(pairs)
}

// bigramSimilarity is a Dice coefficient over word bigrams.
func bigramSimilarity(a, b string) float64 {
	bigramsA := wordBigrams(a)
	bigramsB := wordBigrams(b)

	if len(bigramsA) == 0 && len(bigramsB) == 0 {
		if a == b {
			return 1.0
		}

		return 0.0
	}

	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0.0
	}

	shared := 0

	for bigram := range bigramsA {
		if bigramsB[bigram] {
			shared++
		}
	}

	return 2.0 * float64(shared) / float64(len(bigramsA)+len(bigramsB))
}

func wordBigrams(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	bigrams := make(map[string]bool, len(words))

	for i := 0; i+1 < len(words); i++ {
		bigrams[words[i]+" "+words[i+1]] = true
	}

	return bigrams
}
