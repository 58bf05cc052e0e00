package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// EntityKind is a coarse entity category recognized by the heuristic
// extractor.
type EntityKind string

const (
	EntityPerson EntityKind = "person"
	EntityDate   EntityKind = "date"
	EntityTime   EntityKind = "time"
	EntityGPE    EntityKind = "gpe"
	EntityMoney  EntityKind = "money"
	EntityOther  EntityKind = "other"
)

// Entity is a span of text recognized as an entity candidate.
type Entity struct {
	Name       string
	Kind       EntityKind
	Confidence float64
}

// FastExtractor performs quick regex-based entity extraction with no
// external calls, grounded in memory-service/pkg/extract/fast.go.
type FastExtractor struct {
	patterns   map[EntityKind][]*regexp.Regexp
	personSkip map[string]bool
}

// NewFastExtractor builds a FastExtractor with the default pattern tables.
func NewFastExtractor() *FastExtractor {
	e := &FastExtractor{
		patterns: make(map[EntityKind][]*regexp.Regexp),
		personSkip: map[string]bool{
			"me": true, "you": true, "him": true, "her": true, "them": true, "us": true,
			"it": true, "this": true, "that": true, "these": true, "those": true,
			"call": true, "email": true, "text": true, "meet": true, "talk": true,
			"ask": true, "tell": true, "remind": true, "say": true,
			"the": true, "a": true, "an": true, "some": true, "any": true,
			"to": true, "for": true, "about": true, "with": true, "from": true,
		},
	}

	e.patterns[EntityPerson] = compilePatterns([]string{
		`@(\w+)`,
		`(?:my |the )?(?:friend|colleague|boss|manager|wife|husband|partner) (\w+)`,
		`(?:call|email|text|meet|talk to|ask|tell|remind) (\w+)`,
		`(?:with|from|to) ([A-Z][a-z]+)(?:\s|$|,|\.)`,
	})
	e.patterns[EntityDate] = compilePatterns([]string{
		`\b(\d{1,2}/\d{1,2}(?:/\d{2,4})?)\b`,
		`\b(\d{4}-\d{2}-\d{2})\b`,
		`\b(today|tomorrow|yesterday|next week|last week)\b`,
		`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`,
	})
	e.patterns[EntityTime] = compilePatterns([]string{
		`\b(\d{1,2}:\d{2}(?:\s*[ap]m)?)\b`,
	})
	e.patterns[EntityGPE] = compilePatterns([]string{
		`(?:at|in|to) (?:the )?(\w+ (?:office|building|room|cafe|restaurant|store))`,
	})
	e.patterns[EntityMoney] = compilePatterns([]string{
		`(\$[\d,]+(?:\.\d{2})?[kKmMbB]?)`,
	})

	return e
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	result := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			result = append(result, re)
		}
	}
	return result
}

// Extract performs pattern-based entity extraction on text.
func (e *FastExtractor) Extract(text string) []Entity {
	var entities []Entity

	for kind, patterns := range e.patterns {
		for _, re := range patterns {
			for _, match := range re.FindAllStringSubmatch(text, -1) {
				if len(match) < 2 {
					continue
				}
				name := match[1]
				if kind == EntityPerson && e.personSkip[strings.ToLower(name)] {
					continue
				}
				entities = append(entities, Entity{Name: name, Kind: kind, Confidence: 0.7})
			}
		}
	}

	entities = append(entities, extractCapitalized(text)...)
	return deduplicate(entities)
}

var sentenceEndWords = map[string]bool{
	"I": true, "The": true, "A": true, "An": true, "This": true, "That": true,
	"He": true, "She": true, "They": true, "We": true, "You": true,
	"What": true, "When": true, "Where": true, "Who": true, "Why": true, "How": true,
	"Yes": true, "No": true, "Ok": true, "Sure": true, "Thanks": true,
}

func extractCapitalized(text string) []Entity {
	var entities []Entity
	words := strings.Fields(text)

	for i, word := range words {
		clean := strings.Trim(word, ".,!?;:'\"()[]{}@#")
		if clean == "" || sentenceEndWords[clean] {
			continue
		}
		runes := []rune(clean)
		if len(runes) > 1 && unicode.IsUpper(runes[0]) && unicode.IsLower(runes[1]) {
			prevEndsSentence := i == 0 || endsSentence(words[i-1])
			if !prevEndsSentence {
				entities = append(entities, Entity{Name: clean, Kind: EntityOther, Confidence: 0.5})
			}
		}
	}
	return entities
}

func endsSentence(w string) bool {
	return strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
}

func deduplicate(entities []Entity) []Entity {
	bestByName := make(map[string]Entity)
	for _, e := range entities {
		key := strings.ToLower(e.Name)
		existing, found := bestByName[key]
		if !found {
			bestByName[key] = e
			continue
		}
		if e.Kind != EntityOther && existing.Kind == EntityOther {
			bestByName[key] = e
		} else if e.Kind == existing.Kind && e.Confidence > existing.Confidence {
			bestByName[key] = e
		}
	}
	result := make([]Entity, 0, len(bestByName))
	for _, e := range bestByName {
		result = append(result, e)
	}
	return result
}
