package text

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and strips punctuation",
			input: "Hello, World! This is GREAT.",
			want:  []string{"hello", "world", "this", "is", "great"},
		},
		{
			name:  "keeps contractions",
			input: "Don't skip warm-ups",
			want:  []string{"don't", "skip", "warm", "ups"},
		},
		{
			name:  "empty input",
			input: "   ",
			want:  nil,
		},
		{
			name:  "digits survive",
			input: "rest 90 seconds",
			want:  []string{"rest", "90", "seconds"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTerms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "drops stop words and short tokens",
			input: "How do I improve my squat form?",
			want:  []string{"improve", "squat", "form"},
		},
		{
			name:  "deduplicates",
			input: "squat squat SQUAT depth",
			want:  []string{"squat", "depth"},
		},
		{
			name:  "all stop words",
			input: "what is it",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Terms(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Terms(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("The quick brown fox and the quick red fox", 3)
	want := []string{"quick", "brown", "fox"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{name: "both empty", a: nil, b: nil, want: 0},
		{name: "identical", a: []string{"x", "y"}, b: []string{"x", "y"}, want: 1},
		{name: "disjoint", a: []string{"x"}, b: []string{"y"}, want: 0},
		{name: "half overlap", a: []string{"x", "y"}, b: []string{"y", "z"}, want: 1.0 / 3.0},
		{name: "one side empty", a: []string{"x"}, b: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jaccard(tt.a, tt.b); got != tt.want {
				t.Errorf("Jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestJaccardSymmetric(t *testing.T) {
	a := []string{"deadlift", "grip", "hook"}
	b := []string{"grip", "chalk"}
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Errorf("Jaccard not symmetric: %v vs %v", Jaccard(a, b), Jaccard(b, a))
	}
}

func TestStopWordRatio(t *testing.T) {
	if got := StopWordRatio(""); got != 0 {
		t.Errorf("StopWordRatio(empty) = %v, want 0", got)
	}
	// "the" and "is" are stop words, "bar" and "heavy" are not.
	if got := StopWordRatio("the bar is heavy"); got != 0.5 {
		t.Errorf("StopWordRatio = %v, want 0.5", got)
	}
}

func TestCountSentences(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"One. Two! Three?", 3},
		{"Ellipsis... counts once.", 2},
		{"no terminal punctuation", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := CountSentences(tt.input); got != tt.want {
			t.Errorf("CountSentences(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestEndsWithTerminal(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Done.", true},
		{"Done!  ", true},
		{"Really?", true},
		{"trailing comma,", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := EndsWithTerminal(tt.input); got != tt.want {
			t.Errorf("EndsWithTerminal(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
