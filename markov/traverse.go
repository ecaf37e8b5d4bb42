package markov

import "slices"

// Step is one move through the chain: the link moved to and the surface word
// drawn from that link's own surface forms.
type Step struct {
	Key  string
	Word string
}

// Word draws a surface form of link weighted by how often it was seen.
func (c *Chain) Word(link string) (string, bool) {
	node, ok := c.db[link]
	if !ok {
		return "", false
	}
	return WeightedPick(c.rng, node.Words)
}

// Next draws a successor of link. It reports false when link is unknown or
// the draw lands on the end-of-segment marker.
func (c *Chain) Next(link string) (Step, bool) {
	if link == "" {
		return Step{}, false
	}
	node, ok := c.db[link]
	if !ok {
		return Step{}, false
	}
	return c.step(node.Next)
}

// Prev draws a predecessor of link. It reports false when link is unknown or
// the draw lands on the start-of-segment marker.
func (c *Chain) Prev(link string) (Step, bool) {
	if link == "" {
		return Step{}, false
	}
	node, ok := c.db[link]
	if !ok {
		return Step{}, false
	}
	return c.step(node.Prev)
}

func (c *Chain) step(edges map[string]int) (Step, bool) {
	key, ok := WeightedPick(c.rng, edges)
	if !ok || key == "" {
		return Step{}, false
	}
	word, _ := WeightedPick(c.rng, c.db[key].Words)
	return Step{Key: key, Word: word}, true
}

// Forward walks successors from cur, collecting words in reading order.
// A limit of zero or less runs until the chain ends.
func (c *Chain) Forward(cur string, limit int) []string {
	var words []string
	for limit <= 0 || len(words) < limit {
		step, ok := c.Next(cur)
		if !ok {
			break
		}
		cur = step.Key
		words = append(words, step.Word)
	}
	return words
}

// Backward walks predecessors from cur, prepending each word so the result
// reads in forward order. A limit of zero or less runs until the chain ends.
func (c *Chain) Backward(cur string, limit int) []string {
	var words []string
	for limit <= 0 || len(words) < limit {
		step, ok := c.Prev(cur)
		if !ok {
			break
		}
		cur = step.Key
		words = slices.Insert(words, 0, step.Word)
	}
	return words
}

// Fill expands outward from cur in both directions, one step each per round,
// until both directions end or limit words are collected. Words from both
// directions are inserted at the front of the result.
func (c *Chain) Fill(cur string, limit int) []string {
	first, ok := c.Word(cur)
	if !ok || first == "" {
		return nil
	}
	words := []string{first}
	full := func() bool { return limit > 0 && len(words) >= limit }
	if full() {
		return words
	}

	back, fwd := cur, cur
	backOK, fwdOK := true, true
	for backOK || fwdOK {
		if backOK {
			var step Step
			step, backOK = c.Prev(back)
			if backOK {
				back = step.Key
				words = slices.Insert(words, 0, step.Word)
				if full() {
					break
				}
			}
		}
		if fwdOK {
			var step Step
			step, fwdOK = c.Next(fwd)
			if fwdOK {
				fwd = step.Key
				words = slices.Insert(words, 0, step.Word)
				if full() {
					break
				}
			}
		}
	}
	return words
}
