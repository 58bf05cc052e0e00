package store

// RankedID is one candidate returned by a RetrievalOracle: a memory id with
// an opaque relevance score (higher is more relevant). The core never
// interprets the score beyond ordering by it.
type RankedID struct {
	MemoryID string
	Score    float64
}

// RetrievalOracle is consumed, not produced, by the core: it supplies a
// ranked prior over an owner's memories for a query, which `recall`
// re-scores against attention/salience/pattern state. Real similarity
// search is an explicit Non-goal; RecencyOracle below is the trivial
// grounding implementation.
type RetrievalOracle interface {
	Rank(ownerID, query string, limit int) ([]RankedID, error)
}

// RecencyOracle ranks an owner's active memories by recency, giving
// `recall` a prior to re-score without implementing similarity search.
type RecencyOracle struct {
	db *DB
}

// NewRecencyOracle builds a RecencyOracle over db.
func NewRecencyOracle(db *DB) *RecencyOracle {
	return &RecencyOracle{db: db}
}

// Rank ignores query entirely — it is accepted only to satisfy the
// RetrievalOracle interface that a real similarity backend would need it
// for — and returns the owner's most recent active memories.
func (o *RecencyOracle) Rank(ownerID, query string, limit int) ([]RankedID, error) {
	memories, err := o.db.ListActiveMemories(ownerID, limit)
	if err != nil {
		return nil, err
	}
	result := make([]RankedID, 0, len(memories))
	for i, m := range memories {
		// Linearly decreasing opaque score by rank position; callers only
		// rely on relative ordering.
		result = append(result, RankedID{MemoryID: m.ID, Score: 1.0 - float64(i)/float64(len(memories)+1)})
	}
	return result, nil
}
