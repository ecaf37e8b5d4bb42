// Package markov implements a bidirectional Markov chain over fixed-size token
// windows ("links"). A Chain is trained by seeding it with raw text and then
// walked in both directions from a starting link to synthesize a reply that
// statistically resembles the seeded corpus.
//
// The package performs no I/O beyond reading a caller-supplied io.Reader in
// SeedLines, holds no locks and does not log. Seeding must be serialized by the
// caller; read operations may run concurrently once seeding has finished.
package markov
