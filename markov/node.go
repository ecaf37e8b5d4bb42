package markov

import (
	"sort"

	apperrors "markov-persona/errors"
)

// Node accumulates the statistics of one canonical link.
type Node struct {
	// Count is the number of times the link was observed while seeding.
	Count int `json:"count"`
	// Words maps each surface form seen for the link to its occurrences.
	Words map[string]int `json:"words"`
	// Next maps successor link keys to occurrences. The empty key marks the
	// end of a seeded segment.
	Next map[string]int `json:"next"`
	// Prev maps predecessor link keys to occurrences. The empty key marks the
	// start of a seeded segment.
	Prev map[string]int `json:"prev"`
}

func newNode() *Node {
	return &Node{
		Words: make(map[string]int),
		Next:  make(map[string]int),
		Prev:  make(map[string]int),
	}
}

// Database maps canonical link keys to their nodes. It is the trained model
// and the unit that gets persisted; its JSON encoding is the exchange format.
type Database map[string]*Node

// Keys returns every known link key in sorted order.
func (db Database) Keys() []string {
	keys := make([]string, 0, len(db))
	for key := range db {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Validate reports entries that break the database contract: nil nodes,
// missing words/next/prev tables, and successor or predecessor keys that have
// no node of their own. Engine behavior over a database that fails
// validation is unspecified.
func (db Database) Validate() error {
	for _, key := range db.Keys() {
		node := db[key]
		if node == nil {
			return apperrors.WrapErrorf(apperrors.ErrMalformedDatabase, "link %q has no node", key)
		}
		if node.Words == nil || node.Next == nil || node.Prev == nil {
			return apperrors.WrapErrorf(apperrors.ErrMalformedDatabase, "link %q is missing words, next or prev", key)
		}
		for _, edges := range []map[string]int{node.Next, node.Prev} {
			for ref := range edges {
				if ref == "" {
					continue
				}
				if _, ok := db[ref]; !ok {
					return apperrors.WrapErrorf(apperrors.ErrMalformedDatabase, "link %q references unknown link %q", key, ref)
				}
			}
		}
	}
	return nil
}

// Stats summarizes a database.
type Stats struct {
	Links        int `json:"links"`
	Observations int `json:"observations"`
	SurfaceForms int `json:"surface_forms"`
	Starts       int `json:"starts"`
	Terminals    int `json:"terminals"`
}

// LinkCount pairs a link key with its observation count.
type LinkCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func (db Database) Stats() Stats {
	var s Stats
	for _, node := range db {
		s.Links++
		s.Observations += node.Count
		s.SurfaceForms += len(node.Words)
		if node.Prev[""] > 0 {
			s.Starts++
		}
		if node.Next[""] > 0 {
			s.Terminals++
		}
	}
	return s
}

// TopLinks returns up to n links ordered by descending count, ties broken by key.
func (db Database) TopLinks(n int) []LinkCount {
	top := make([]LinkCount, 0, len(db))
	for key, node := range db {
		top = append(top, LinkCount{Key: key, Count: node.Count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Key < top[j].Key
	})
	if n > 0 && len(top) > n {
		top = top[:n]
	}
	return top
}
