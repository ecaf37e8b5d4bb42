package markov

// Search finds a starting link for text: every window of text that is a known
// link becomes a candidate weighted by its count.
func (c *Chain) Search(text string) (string, bool) {
	candidates := make(map[string]int)
	for _, link := range c.links(text) {
		key := Clean(link)
		if node, ok := c.db[key]; ok {
			candidates[key] = node.Count
		}
	}
	return WeightedPick(c.rng, candidates)
}

// Pick returns any known link, uniformly at random.
func (c *Chain) Pick() (string, bool) {
	return UniformPick(c.rng, c.db.Keys())
}

// Respond builds a reply to text. It starts from a link found by Search,
// falls back to a random link, and returns nil for an empty database.
func (c *Chain) Respond(text string, limit int) []string {
	start, ok := c.Search(text)
	if !ok || start == "" {
		start, ok = c.Pick()
	}
	if !ok {
		return nil
	}
	return c.Fill(start, limit)
}
