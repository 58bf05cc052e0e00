package extract

import (
	"strings"

	"github.com/tsawler/prose/v3"
)

// ProseExtractor extracts named entities and sentence structure with
// github.com/tsawler/prose/v3, grounded in
// memory-service/pkg/extract/prose.go's document-pipeline shape.
type ProseExtractor struct{}

// NewProseExtractor builds a ProseExtractor.
func NewProseExtractor() *ProseExtractor {
	return &ProseExtractor{}
}

// ProseResult is the structured output of a prose pass over a piece of text.
type ProseResult struct {
	People    []string
	Orgs      []string
	Places    []string
	Topics    []string
	Sentences int
}

// labelBucket buckets a prose NER label into one of the FeatureBundle-facing
// categories.
func labelBucket(label string) string {
	switch label {
	case "PERSON":
		return "people"
	case "ORG":
		return "orgs"
	case "GPE", "LOC", "FAC":
		return "places"
	case "PRODUCT", "EVENT", "WORK_OF_ART", "NORP":
		return "topics"
	default:
		return ""
	}
}

// Extract runs prose's tokenizer, segmenter, and NER over text.
func (p *ProseExtractor) Extract(text string) (*ProseResult, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	result := &ProseResult{}
	seen := make(map[string]bool)

	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		if name == "" {
			continue
		}
		key := ent.Label + "|" + strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		switch labelBucket(ent.Label) {
		case "people":
			result.People = append(result.People, name)
		case "orgs":
			result.Orgs = append(result.Orgs, name)
		case "places":
			result.Places = append(result.Places, name)
		case "topics":
			result.Topics = append(result.Topics, name)
		}
	}

	result.Sentences = len(doc.Sentences())
	return result, nil
}
