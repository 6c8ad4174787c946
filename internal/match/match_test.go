package match

import "testing"

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		name     string
		needle   string
		haystack string
		want     int
	}{
		{name: "Substring hit", needle: "ALICE", haystack: "ALICE IS HERE", want: 100},
		{name: "Case insensitive", needle: "alice", haystack: "Breaking: ALICE wins", want: 100},
		{name: "One OCR slip", needle: "ALICE", haystack: "ALIGE IS HERE", want: 80},
		{name: "Unrelated", needle: "ALICE", haystack: "BOB", want: 0},
		{name: "Needle longer than haystack", needle: "ALICE IS HERE", haystack: "alice", want: 100},
		{name: "Both empty", needle: "", haystack: "", want: 100},
		{name: "Empty haystack", needle: "ALICE", haystack: "", want: 0},
		{name: "Empty needle", needle: "", haystack: "ALICE", want: 0},
		{name: "Multiline OCR output", needle: "alice", haystack: "LIVE\nALICE\n\f", want: 100},
		{name: "Unicode", needle: "zoë", haystack: "ZOË ON STAGE", want: 100},
		{name: "Inserted space", needle: "ALICE", haystack: "AL ICE IS HERE", want: 80},
		{name: "Swapped letters", needle: "ALICE", haystack: "ALIEC IS HERE", want: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PartialRatio(tt.needle, tt.haystack); got != tt.want {
				t.Errorf("PartialRatio(%q, %q) = %d, want %d", tt.needle, tt.haystack, got, tt.want)
			}
		})
	}
}

func TestPartialRatioRange(t *testing.T) {
	inputs := []string{"", "a", "ALICE", "alice in wonderland", "xyz", "ali ce", "ÄLICE"}
	for _, a := range inputs {
		for _, b := range inputs {
			got := PartialRatio(a, b)
			if got < 0 || got > 100 {
				t.Errorf("PartialRatio(%q, %q) = %d out of [0,100]", a, b, got)
			}
		}
	}
}

func TestShouldSave(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		lastSaved string
		score     int
		threshold int
		want      bool
	}{
		{name: "Novel match", text: "ALICE IS HERE", score: 90, threshold: 80, want: true},
		{name: "Threshold is inclusive", text: "ALICE", score: 80, threshold: 80, want: true},
		{name: "One below threshold", text: "ALICE", score: 79, threshold: 80, want: false},
		{name: "Duplicate text", text: "ALICE IS HERE", lastSaved: "ALICE IS HERE", score: 100, threshold: 80, want: false},
		{name: "One character differs", text: "ALICE IS HERE!", lastSaved: "ALICE IS HERE", score: 100, threshold: 80, want: true},
		{name: "Empty text matching empty last", text: "", lastSaved: "", score: 100, threshold: 0, want: false},
		{name: "Zero threshold novel", text: "anything", score: 0, threshold: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldSave(tt.text, tt.lastSaved, tt.score, tt.threshold); got != tt.want {
				t.Errorf("ShouldSave() = %v, want %v", got, tt.want)
			}
		})
	}
}
