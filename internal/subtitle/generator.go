package subtitle

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Generator turns raw transcription utterances into a numbered track.
type Generator struct {
	MaxCharsPerLine int
	MaxLinesPerSub  int
	MinDuration     time.Duration
	MaxDuration     time.Duration
}

func NewGenerator() *Generator {
	return &Generator{
		MaxCharsPerLine: 42,
		MaxLinesPerSub:  2,
		MinDuration:     time.Second,
		MaxDuration:     7 * time.Second,
	}
}

// Generate numbers utterances from 1 in start order, splitting long ones and
// wrapping text onto at most MaxLinesPerSub lines. Empty and zero-length
// utterances are dropped so every segment satisfies start < end.
func (g *Generator) Generate(utterances []Utterance) []Segment {
	ordered := make([]Utterance, 0, len(utterances))
	for _, u := range utterances {
		u.Text = strings.TrimSpace(u.Text)
		if u.Text == "" || u.End <= u.Start {
			continue
		}
		ordered = append(ordered, u)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	var pieces []Utterance
	for _, u := range ordered {
		if g.needsSplit(u) {
			pieces = append(pieces, g.split(u)...)
		} else {
			pieces = append(pieces, u)
		}
	}

	segments := make([]Segment, 0, len(pieces))
	for i, p := range pieces {
		end := p.End
		if end-p.Start < g.MinDuration {
			end = p.Start + g.MinDuration
			if i+1 < len(pieces) && end > pieces[i+1].Start {
				end = max(pieces[i+1].Start, p.End)
			}
		}
		segments = append(segments, Segment{
			Index: len(segments) + 1,
			Start: p.Start,
			End:   end,
			Lines: g.wrap(p.Text),
		})
	}
	return segments
}

func (g *Generator) needsSplit(u Utterance) bool {
	if utf8.RuneCountInString(u.Text) > g.MaxCharsPerLine*g.MaxLinesPerSub {
		return true
	}
	return u.End-u.Start > g.MaxDuration
}

// distributes words evenly across enough pieces to satisfy both limits
func (g *Generator) split(u Utterance) []Utterance {
	words := strings.Fields(u.Text)
	if len(words) == 0 {
		return nil
	}

	total := u.End - u.Start
	maxChars := g.MaxCharsPerLine * g.MaxLinesPerSub

	n := (utf8.RuneCountInString(u.Text) + maxChars - 1) / maxChars
	if byDuration := int(total/g.MaxDuration) + 1; byDuration > n {
		n = byDuration
	}
	if n > len(words) {
		n = len(words)
	}
	if n < 1 {
		n = 1
	}

	perPiece := (len(words) + n - 1) / n
	step := total / time.Duration(n)

	var out []Utterance
	start := u.Start
	for len(words) > 0 {
		take := min(perPiece, len(words))
		chunk := words[:take]
		words = words[take:]

		end := start + step
		if len(words) == 0 {
			end = u.End
		}
		out = append(out, Utterance{Start: start, End: end, Text: strings.Join(chunk, " ")})
		start = end
	}
	return out
}

// breaks text into two balanced lines when it overflows one
func (g *Generator) wrap(text string) []string {
	runes := utf8.RuneCountInString(text)
	if runes <= g.MaxCharsPerLine {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) < 2 {
		return []string{text}
	}

	middle := runes / 2
	best, bestDiff := 0, runes
	length := 0
	for i, word := range words[:len(words)-1] {
		length += utf8.RuneCountInString(word)
		if i > 0 {
			length++
		}
		diff := length - middle
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = i+1, diff
		}
	}

	return []string{
		strings.Join(words[:best], " "),
		strings.Join(words[best:], " "),
	}
}
