package deck

import (
	"testing"
)

func TestNew_FullDeck(t *testing.T) {
	cards := New()
	if len(cards) != 52 {
		t.Fatalf("Expected 52 cards, got %d", len(cards))
	}

	seen := make(map[string]bool)
	for _, c := range cards {
		key := c.Suit + "-" + c.Rank
		if seen[key] {
			t.Errorf("Duplicate card: %s", key)
		}
		seen[key] = true

		if c.Value < 2 || c.Value > 14 {
			t.Errorf("Card %s has value %d out of range 2..14", key, c.Value)
		}
	}
}

func TestNew_RankValues(t *testing.T) {
	cards := New()

	// Spot-check the value mapping: 2 is lowest, A is highest
	for _, c := range cards {
		switch c.Rank {
		case "2":
			if c.Value != 2 {
				t.Errorf("Expected rank 2 to have value 2, got %d", c.Value)
			}
		case "10":
			if c.Value != 10 {
				t.Errorf("Expected rank 10 to have value 10, got %d", c.Value)
			}
		case "J":
			if c.Value != 11 {
				t.Errorf("Expected rank J to have value 11, got %d", c.Value)
			}
		case "A":
			if c.Value != 14 {
				t.Errorf("Expected rank A to have value 14, got %d", c.Value)
			}
		}
	}
}

func TestShuffle_IsPermutation(t *testing.T) {
	original := New()
	shuffled := Shuffle(original)

	if len(shuffled) != len(original) {
		t.Fatalf("Expected shuffled deck of %d cards, got %d", len(original), len(shuffled))
	}

	counts := make(map[string]int)
	for _, c := range original {
		counts[c.Suit+"-"+c.Rank]++
	}
	for _, c := range shuffled {
		counts[c.Suit+"-"+c.Rank]--
	}
	for key, n := range counts {
		if n != 0 {
			t.Errorf("Card %s count mismatch after shuffle: %d", key, n)
		}
	}
}

func TestShuffle_DoesNotMutateInput(t *testing.T) {
	original := New()
	reference := New()

	Shuffle(original)

	for i := range original {
		if original[i] != reference[i] {
			t.Fatalf("Shuffle mutated the input slice at index %d", i)
		}
	}
}

func TestShuffle_OrderVaries(t *testing.T) {
	original := New()

	// A shuffle identical to the factory order is possible but so
	// unlikely that five in a row means the shuffle is broken.
	for attempt := 0; attempt < 5; attempt++ {
		shuffled := Shuffle(original)
		for i := range shuffled {
			if shuffled[i] != original[i] {
				return
			}
		}
	}
	t.Fatal("Shuffle returned the input order repeatedly")
}
