// Package fragment extracts concrete overlapping text runs between two
// documents: the longest word-runs of doc1 that occur verbatim inside
// doc2, above a minimum character length.
package fragment

import (
	"sort"
	"strings"

	"github.com/simdex/simdex/internal/text"
)

// DefaultMinChars is the default minimum character length a fragment
// must reach to be reported.
const DefaultMinChars = 30

// DefaultWindowWords is the starting word-window size a candidate
// fragment grows from.
const DefaultWindowWords = 5

// Match describes one overlapping fragment found between two texts.
type Match struct {
	Text         string
	PositionDoc1 int // word offset into doc1's word sequence
	PositionDoc2 int // char offset into the normalized, space-joined doc2 text
	Length       int // word count
}

// Find returns the ranked, non-overlapping fragments shared between
// text1 and text2, each at least minChars long, starting candidate
// windows at windowWords words.
//
// Substring search against the joined doc2 text is exact string
// containment, not re-tokenized: it can only span a word boundary if
// the normalized text itself does, which is acceptable since the
// fragment is still literally present in doc2.
func Find(text1, text2 string, minChars, windowWords int) []Match {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	if windowWords <= 0 {
		windowWords = DefaultWindowWords
	}

	n1 := text.Normalize(text1)
	n2 := text.Normalize(text2)

	w1 := strings.Fields(n1)
	w2 := strings.Fields(n2)
	joined2 := strings.Join(w2, " ")

	// wordOffsetToChar[i] is the char offset in joined2 where word i starts.
	wordOffsetToChar := make([]int, len(w2)+1)
	offset := 0
	for i, w := range w2 {
		wordOffsetToChar[i] = offset
		offset += len(w) + 1
	}
	wordOffsetToChar[len(w2)] = offset

	var candidates []Match
	for i := 0; i+windowWords <= len(w1); i++ {
		end := i + windowWords
		window := strings.Join(w1[i:end], " ")
		charPos := strings.Index(joined2, window)
		if charPos < 0 {
			continue
		}

		// Extend word-by-word while the extended string still occurs.
		bestEnd := end
		bestPos := charPos
		for end < len(w1) {
			extended := strings.Join(w1[i:end+1], " ")
			pos := strings.Index(joined2, extended)
			if pos < 0 {
				break
			}
			bestEnd = end + 1
			bestPos = pos
			end++
		}

		frag := strings.Join(w1[i:bestEnd], " ")
		if len(frag) < minChars {
			continue
		}

		candidates = append(candidates, Match{
			Text:         frag,
			PositionDoc1: i,
			PositionDoc2: bestPos,
			Length:       bestEnd - i,
		})
	}

	return greedySelect(candidates)
}

// greedySelect sorts candidates by descending word length (ties broken
// by earlier start) and greedily accepts matches whose doc1 word span
// does not overlap an already-accepted match.
func greedySelect(candidates []Match) []Match {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Length != candidates[j].Length {
			return candidates[i].Length > candidates[j].Length
		}
		return candidates[i].PositionDoc1 < candidates[j].PositionDoc1
	})

	used := make(map[int]struct{})
	var accepted []Match

	for _, c := range candidates {
		overlap := false
		for w := c.PositionDoc1; w < c.PositionDoc1+c.Length; w++ {
			if _, ok := used[w]; ok {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}

		for w := c.PositionDoc1; w < c.PositionDoc1+c.Length; w++ {
			used[w] = struct{}{}
		}
		accepted = append(accepted, c)
	}

	return accepted
}
