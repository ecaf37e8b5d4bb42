package markov

import (
	"bufio"
	"io"
	"strings"

	apperrors "markov-persona/errors"
)

// DefaultOrder is the link size used when New is given an order of zero.
const DefaultOrder = 2

// maxLineBytes bounds a single line read by SeedLines.
const maxLineBytes = 1 << 20

// Chain is a Markov chain engine over one Database.
type Chain struct {
	order int
	db    Database
	rng   Rand
}

// Option configures a Chain.
type Option func(*Chain)

// WithRand replaces the default sampling source. A *rand.Rand is not safe for
// concurrent use, so a chain built with one must not serve parallel reads.
func WithRand(rng Rand) Option {
	return func(c *Chain) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// New builds a chain of the given order over db. An order of zero selects
// DefaultOrder; a negative order is rejected. A nil db starts empty.
func New(order int, db Database, opts ...Option) (*Chain, error) {
	if order < 0 {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "chain order must be positive, got %d", order)
	}
	if order == 0 {
		order = DefaultOrder
	}
	if db == nil {
		db = make(Database)
	}

	c := &Chain{order: order, db: db, rng: globalRand{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Order returns the number of tokens grouped into one link.
func (c *Chain) Order() int { return c.order }

// Database returns the underlying database. Callers persist it after seeding.
func (c *Chain) Database() Database { return c.db }

// links tokenizes text on whitespace and groups the tokens into surface links.
func (c *Chain) links(text string) []string {
	return windows(strings.Fields(text), c.order)
}

// Seed trains the chain on one segment of text. Text that yields fewer than
// two links leaves the database untouched.
func (c *Chain) Seed(text string) {
	links := c.links(text)
	if len(links) < 2 {
		return
	}

	var word, cword, next, cnext string
	for i := 1; i < len(links); i++ {
		word = links[i-1]
		cword = Clean(word)
		next = links[i]
		cnext = Clean(next)

		node, ok := c.db[cword]
		if !ok {
			node = newNode()
			c.db[cword] = node
		}
		node.Count++
		node.Words[word]++
		node.Next[cnext]++
		if i > 1 {
			node.Prev[Clean(links[i-2])]++
		} else {
			node.Prev[""]++
		}
	}

	// The final link terminates the segment.
	last, ok := c.db[cnext]
	if ok {
		last.Count++
	} else {
		last = newNode()
		last.Count = 1
		last.Next[""] = 0
		c.db[cnext] = last
	}
	last.Words[next]++
	last.Prev[cword]++
	last.Next[""]++
}

// SeedAll seeds every text as its own segment.
func (c *Chain) SeedAll(texts []string) {
	for _, text := range texts {
		c.Seed(text)
	}
}

// SeedLines seeds each line read from r as an independent segment. It returns
// the read error that stopped it, if any; lines seeded before the failure
// remain in the database.
func (c *Chain) SeedLines(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		c.Seed(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return apperrors.WrapError(err, "failed to read seed lines")
	}
	return nil
}
