package markov

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSearch(t *testing.T) {
	c := catChain(t)

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"exact_link", "the cat", "the_cat", true},
		{"case_and_punctuation", "THE MAT!!", "the_mat", true},
		{"misaligned_window", "cat sat", "", false},
		{"no_match", "quantum chromodynamics", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Search(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Search(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSearchWeightsByCount(t *testing.T) {
	c := newTestChain(t, 2)
	c.Seed("the cat sat on the mat")
	for i := 0; i < 9; i++ {
		c.Seed("sat on a log")
	}

	hits := 0
	for i := 0; i < 2000; i++ {
		key, _ := c.Search("the cat sat on")
		if key == "sat_on" {
			hits++
		}
	}
	// sat_on has count 10 against the_cat's 1.
	if hits < 1700 {
		t.Errorf("sat_on chosen %d/2000 times, want ~1818", hits)
	}
}

func TestRespondUsesSearch(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		c, err := New(2, nil, WithRand(testRand(seed)))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		c.Seed(catSentence)

		// Only a fill started at the_cat yields this order.
		want := []string{"the mat", "sat on", "the cat"}
		if diff := cmp.Diff(want, c.Respond("the cat", 0)); diff != "" {
			t.Fatalf("seed %d: Respond mismatch (-want +got):\n%s", seed, diff)
		}
	}
}

func TestRespondFallsBackToPick(t *testing.T) {
	c := catChain(t)
	if _, ok := c.Search("nothing in common"); ok {
		t.Fatal("Search should be absent for unknown text")
	}
	if got := c.Respond("nothing in common", 0); len(got) == 0 {
		t.Error("Respond should fall back to a random link on a non-empty database")
	}

	empty := newTestChain(t, 2)
	if got := empty.Respond("the cat", 0); len(got) != 0 {
		t.Errorf("Respond on empty database = %v, want empty", got)
	}
	if _, ok := empty.Pick(); ok {
		t.Error("Pick on empty database should be absent")
	}
}

func TestRespondLimit(t *testing.T) {
	c := newTestChain(t, 1)
	c.Seed("one two three four five six seven eight nine ten")
	for _, limit := range []int{1, 2, 3, 5} {
		if got := c.Respond("five", limit); len(got) != limit {
			t.Errorf("Respond limit %d returned %d words: %v", limit, len(got), got)
		}
	}
}
