package textsplitter

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"github.com/pkoukk/tiktoken-go"
)

// Unit is the unit a Splitter counts when forming windows.
type Unit string

const (
	// UnitWord splits on whitespace-delimited tokens.
	UnitWord Unit = "word"
	// UnitSentence splits on sentence boundaries.
	UnitSentence Unit = "sentence"
	// UnitToken splits on cl100k_base BPE tokens.
	UnitToken Unit = "token"
)

const (
	// DefaultLength is the default window length.
	DefaultLength = 100
	// DefaultOverlap is the default window overlap.
	DefaultOverlap = 0

	tokenEncoding = "cl100k_base"
)

// Splitter breaks cleaned text into windows of a fixed number of units.
// Texts shorter than one window are emitted whole; the final window of a
// text may be shorter than the configured length.
type Splitter struct {
	unit    Unit
	length  int
	overlap int

	sentenceTokenizer *sentences.DefaultSentenceTokenizer
	tokenEncoder      *tiktoken.Tiktoken
}

// New creates a Splitter. Length must be positive and overlap must be
// smaller than length.
func New(unit Unit, length, overlap int) (*Splitter, error) {
	if length <= 0 {
		return nil, fmt.Errorf("split length must be positive, got %d", length)
	}
	if overlap < 0 || overlap >= length {
		return nil, fmt.Errorf("split overlap must be in [0, %d), got %d", length, overlap)
	}

	s := &Splitter{unit: unit, length: length, overlap: overlap}
	switch unit {
	case UnitWord:
	case UnitSentence:
		tokenizer, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			return nil, fmt.Errorf("load sentence tokenizer: %w", err)
		}
		s.sentenceTokenizer = tokenizer
	case UnitToken:
		encoder, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			return nil, fmt.Errorf("load %s encoding: %w", tokenEncoding, err)
		}
		s.tokenEncoder = encoder
	default:
		return nil, fmt.Errorf("unknown split unit %q", unit)
	}
	return s, nil
}

// NewDefault creates the standard word splitter: windows of 100 words with
// zero overlap.
func NewDefault() *Splitter {
	s, err := New(UnitWord, DefaultLength, DefaultOverlap)
	if err != nil {
		panic(err) // unreachable with constant arguments
	}
	return s
}

// Split breaks text into windows. Empty or whitespace-only text yields no
// windows.
func (s *Splitter) Split(text string) []string {
	switch s.unit {
	case UnitSentence:
		return s.splitJoined(s.sentences(text), " ")
	case UnitToken:
		return s.splitTokens(text)
	default:
		return s.splitJoined(strings.Fields(text), " ")
	}
}

func (s *Splitter) splitJoined(units []string, sep string) []string {
	var windows []string
	for start := 0; start < len(units); start += s.length - s.overlap {
		end := start + s.length
		if end > len(units) {
			end = len(units)
		}
		windows = append(windows, strings.Join(units[start:end], sep))
		if end == len(units) {
			break
		}
	}
	return windows
}

func (s *Splitter) sentences(text string) []string {
	tokens := s.sentenceTokenizer.Tokenize(text)
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		sentence := strings.TrimSpace(token.Text)
		if sentence != "" {
			result = append(result, sentence)
		}
	}
	return result
}

func (s *Splitter) splitTokens(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ids := s.tokenEncoder.Encode(text, nil, nil)
	var windows []string
	for start := 0; start < len(ids); start += s.length - s.overlap {
		end := start + s.length
		if end > len(ids) {
			end = len(ids)
		}
		windows = append(windows, s.tokenEncoder.Decode(ids[start:end]))
		if end == len(ids) {
			break
		}
	}
	return windows
}
