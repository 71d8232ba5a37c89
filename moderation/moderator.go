// Package moderation masks banned vocabulary in relayed message content.
// Matching runs on a normalized view of the text (lowercased, separators
// stripped) so spaced or dotted variants of a banned word still hit,
// while the masking is applied to the original runes to preserve layout.
package moderation

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"campus-relay/errors"
)

type Moderator struct {
	machine     *goahocorasick.Machine
	maskingRune rune
}

// textView pairs the normalized runes with the index each one had in the
// original string, so a match span can be mapped back for masking.
type textView struct {
	normalized []rune
	originIdx  []int
}

// NewModerator builds the Aho-Corasick automaton from the banned word
// list. Words are normalized the same way input text is.
func NewModerator(bannedWords []string, maskingRune rune) (*Moderator, error) {
	if len(bannedWords) == 0 {
		return nil, errors.ErrEmptyWordList
	}

	patterns := make([][]rune, 0, len(bannedWords))
	for _, word := range bannedWords {
		normalized := normalizeRunes([]rune(word))
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWordList
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{machine: machine, maskingRune: maskingRune}, nil
}

// LoadWordList reads one banned word per line, skipping blanks and
// '#'-prefixed comments.
func LoadWordList(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

// Censor replaces every banned span with the masking rune. The input is
// returned unchanged when nothing matches.
func (m *Moderator) Censor(content string) string {
	view := project(content)
	if len(view.normalized) == 0 {
		return content
	}

	spans := m.machine.MultiPatternSearch(view.normalized, false)
	if len(spans) == 0 {
		return content
	}

	masked := []rune(content)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(view.originIdx) {
			continue
		}
		from := view.originIdx[start]
		to := view.originIdx[end-1] + 1
		for i := from; i < to; i++ {
			masked[i] = m.maskingRune
		}
	}
	return string(masked)
}

// project builds the normalized view of the input, remembering where
// each kept rune came from.
func project(input string) textView {
	origin := []rune(input)
	view := textView{
		normalized: make([]rune, 0, len(origin)),
		originIdx:  make([]int, 0, len(origin)),
	}
	for i, r := range origin {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			continue
		}
		view.normalized = append(view.normalized, unicode.ToLower(r))
		view.originIdx = append(view.originIdx, i)
	}
	return view
}

func normalizeRunes(input []rune) []rune {
	normalized := make([]rune, 0, len(input))
	for _, r := range input {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(r))
	}
	return normalized
}
