package chatbot

import (
	"math"
	"testing"
)

func TestSearchText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello", "hello"},
		{"  How   are\tyou?  ", "how are you"},
		{"What's up?!", "what's up"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := SearchText(tt.in); got != tt.want {
			t.Errorf("SearchText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"hello", "hello", 1},
		{"hello", "", 0},
		{"", "hello", 0},
		{"hello", "hallo", 0.8},
		{"abc", "xyz", 0},
		{"héllo", "hello", 0.8},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
