package textsplitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain text", "hello world", "hello world"},
		{"collapses repeated whitespace", "hello   world\tagain", "hello world again"},
		{"removes empty lines", "first\n\n\nsecond\n\nthird", "first\nsecond\nthird"},
		{"trims line edges", "  padded  \n  more  ", "padded\nmore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestWordSplitter(t *testing.T) {
	t.Run("short text emitted whole", func(t *testing.T) {
		s := NewDefault()
		windows := s.Split("just a few words")
		require.Len(t, windows, 1)
		assert.Equal(t, "just a few words", windows[0])
	})

	t.Run("empty text yields no windows", func(t *testing.T) {
		s := NewDefault()
		assert.Empty(t, s.Split(""))
		assert.Empty(t, s.Split("   \n  "))
	})

	t.Run("splits into fixed windows with short tail", func(t *testing.T) {
		s := NewDefault()
		windows := s.Split(words(250))
		require.Len(t, windows, 3)
		assert.Len(t, strings.Fields(windows[0]), 100)
		assert.Len(t, strings.Fields(windows[1]), 100)
		assert.Len(t, strings.Fields(windows[2]), 50)
	})

	t.Run("exact multiple has no empty tail", func(t *testing.T) {
		s := NewDefault()
		windows := s.Split(words(200))
		require.Len(t, windows, 2)
	})

	t.Run("windows preserve word order", func(t *testing.T) {
		s := NewDefault()
		windows := s.Split(words(150))
		assert.True(t, strings.HasPrefix(windows[0], "w0 "))
		assert.True(t, strings.HasPrefix(windows[1], "w100 "))
	})

	t.Run("overlap repeats trailing words", func(t *testing.T) {
		s, err := New(UnitWord, 10, 3)
		require.NoError(t, err)
		windows := s.Split(words(17))
		require.Len(t, windows, 2)
		assert.True(t, strings.HasPrefix(windows[1], "w7 "))
	})
}

func TestSentenceSplitter(t *testing.T) {
	s, err := New(UnitSentence, 2, 0)
	require.NoError(t, err)

	windows := s.Split("First sentence. Second sentence. Third sentence.")
	require.Len(t, windows, 2)
	assert.Contains(t, windows[0], "First sentence.")
	assert.Contains(t, windows[0], "Second sentence.")
	assert.Contains(t, windows[1], "Third sentence.")
}

func TestTokenSplitter(t *testing.T) {
	s, err := New(UnitToken, 5, 0)
	require.NoError(t, err)

	text := "The quick brown fox jumps over the lazy dog near the river bank."
	windows := s.Split(text)
	require.NotEmpty(t, windows)
	// Decoding the windows in order must reproduce the input.
	assert.Equal(t, text, strings.Join(windows, ""))

	assert.Empty(t, s.Split("  "))
}

func TestNewValidation(t *testing.T) {
	_, err := New(UnitWord, 0, 0)
	assert.Error(t, err)

	_, err = New(UnitWord, 10, 10)
	assert.Error(t, err)

	_, err = New(Unit("page"), 10, 0)
	assert.Error(t, err)
}
