package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"spaces only", "   ", []string{}},
		{"plain words", "a b  c", []string{"a", "b", "c"}},
		{"quoted segment", `say "hello world" now`, []string{"say", "hello world", "now"}},
		{"quoted content trimmed", `" padded "`, []string{"padded"}},
		{"empty quotes", `a "" b`, []string{"a", "", "b"}},
		{"unterminated quote", `a "open ended`, []string{"a", "open ended"}},
		{"unterminated empty quote", `a "`, []string{"a"}},
		{"quote inside word", `ab"cd ef"`, []string{"abcd ef"}},
		{"unicode", `привет "мир тесен"`, []string{"привет", "мир тесен"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		prefix   string
		wantName string
		wantRest string
		wantOK   bool
	}{
		{"simple", "@ping", "@", "ping", "", true},
		{"with args", "@Kick Steve spam", "@", "kick", "Steve spam", true},
		{"no prefix", "ping", "@", "", "", false},
		{"prefix only", "@", "@", "", "", false},
		{"space after prefix", "@ ping", "@", "", "", false},
		{"multi-char prefix", "!!ping x", "!!", "ping", "x", true},
		{"empty prefix", "ping", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, rest, ok := SplitCommand(tt.text, tt.prefix)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantName, name)
			require.Equal(t, tt.wantRest, rest)
		})
	}
}
