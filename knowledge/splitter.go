package knowledge

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Splitter splits text into ordered, overlapping fragments of roughly
// targetTokens tokens each.
type Splitter interface {
	Split(text string, targetTokens, overlapTokens int) ([]string, error)
}

// TokenSplitter counts tokens with the cl100k_base encoding.
type TokenSplitter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenSplitter loads the cl100k_base encoding.
func NewTokenSplitter() (*TokenSplitter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get encoding: %w", err)
	}

	return &TokenSplitter{encoding: enc}, nil
}

// Split implements Splitter.
func (s *TokenSplitter) Split(text string, targetTokens, overlapTokens int) ([]string, error) {
	tokens := s.encoding.Encode(text, nil, nil)

	var out []string

	for _, w := range windows(len(tokens), targetTokens, overlapTokens) {
		chunk := strings.TrimSpace(s.encoding.Decode(tokens[w[0]:w[1]]))
		if chunk != "" {
			out = append(out, chunk)
		}
	}

	return out, nil
}

// WordSplitter treats whitespace-separated words as tokens. It needs no
// encoding data and serves as a fallback when the tokenizer is unavailable.
type WordSplitter struct{}

// Split implements Splitter.
func (WordSplitter) Split(text string, targetTokens, overlapTokens int) ([]string, error) {
	words := strings.Fields(text)

	var out []string
	for _, w := range windows(len(words), targetTokens, overlapTokens) {
		out = append(out, strings.Join(words[w[0]:w[1]], " "))
	}

	return out, nil
}

// windows returns [start, end) ranges of size target advancing by
// target-overlap until n is covered.
func windows(n, target, overlap int) [][2]int {
	if n == 0 {
		return nil
	}

	if target <= 0 {
		target = n
	}

	if overlap < 0 || overlap >= target {
		overlap = 0
	}

	step := target - overlap

	var out [][2]int

	for start := 0; start < n; start += step {
		end := start + target
		if end >= n {
			out = append(out, [2]int{start, n})
			break
		}

		out = append(out, [2]int{start, end})
	}

	return out
}
