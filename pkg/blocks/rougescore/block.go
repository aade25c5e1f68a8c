// Package rougescore provides an experimental block comparing generated
// text against a reference with ROUGE metrics.
package rougescore

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Block computes the f-measure of a single ROUGE variant between two
// text fields of the state. Either field being empty scores 0.
type Block struct {
	GeneratedField string
	ReferenceField string
	RougeType      string
}

func NewBlock(config map[string]any) (*Block, error) {
	generatedField, _ := config["generated_field"].(string)
	if generatedField == "" {
		generatedField = "assistant"
	}

	referenceField, _ := config["reference_field"].(string)
	if referenceField == "" {
		referenceField = "reference"
	}

	rougeType, _ := config["rouge_type"].(string)
	if rougeType == "" {
		rougeType = "rouge1"
	}

	switch rougeType {
	case "rouge1", "rouge2", "rougeL":
	default:
		return nil, fmt.Errorf("unsupported rouge_type %q", rougeType)
	}

	return &Block{
		GeneratedField: generatedField,
		ReferenceField: referenceField,
		RougeType:      rougeType,
	}, nil
}

func (b *Block) Execute(_ context.Context, state map[string]any) (map[string]any, error) {
	generated, _ := state[b.GeneratedField].(string)
	reference, _ := state[b.ReferenceField].(string)

	if generated == "" || reference == "" {
		return map[string]any{"rouge_score": 0.0}, nil
	}

	var score float64

	switch b.RougeType {
	case "rouge1":
		score = ngramFMeasure(tokenize(reference), tokenize(generated), 1)
	case "rouge2":
		score = ngramFMeasure(tokenize(reference), tokenize(generated), 2)
	case "rougeL":
		score = lcsFMeasure(tokenize(reference), tokenize(generated))
	}

	return map[string]any{"rouge_score": score}, nil
}

// tokenize lowercases and keeps alphanumeric runs, matching the usual
// ROUGE preprocessing.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func ngrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)

	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}

	return counts
}

// ngramFMeasure scores clipped n-gram overlap between reference and
// generated token streams.
func ngramFMeasure(reference, generated []string, n int) float64 {
	refCounts := ngrams(reference, n)
	genCounts := ngrams(generated, n)

	refTotal := 0
	for _, count := range refCounts {
		refTotal += count
	}

	genTotal := 0
	for _, count := range genCounts {
		genTotal += count
	}

	matches := 0

	for gram, count := range genCounts {
		matches += min(count, refCounts[gram])
	}

	return fMeasure(matches, genTotal, refTotal)
}

func lcsFMeasure(reference, generated []string) float64 {
	return fMeasure(lcsLength(reference, generated), len(generated), len(reference))
}

func fMeasure(matches, generatedTotal, referenceTotal int) float64 {
	if matches == 0 || generatedTotal == 0 || referenceTotal == 0 {
		return 0.0
	}

	precision := float64(matches) / float64(generatedTotal)
	recall := float64(matches) / float64(referenceTotal)

	return 2 * precision * recall / (precision + recall)
}

func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
