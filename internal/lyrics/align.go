package lyrics

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode"
)

const (
	DefaultReferenceTolerance = 0.15
	MaxReferenceChars         = 20000
)

var (
	ErrReferenceTooLong     = errors.New("reference lyrics exceed maximum length")
	ErrReferenceControlChar = errors.New("reference lyrics contain control characters")
	ErrReferenceEmpty       = errors.New("reference lyrics contain no words")

	sectionTagRE = regexp.MustCompile(`\[[^\]]*\]`)
)

// ReferenceTokens validates caller-supplied lyric text and splits it into
// words. Section tags such as "[Chorus]" are dropped.
func ReferenceTokens(reference string) ([]string, error) {
	if len(reference) > MaxReferenceChars {
		return nil, ErrReferenceTooLong
	}
	for _, r := range reference {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return nil, ErrReferenceControlChar
		}
	}
	cleaned := sectionTagRE.ReplaceAllString(reference, " ")
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return nil, ErrReferenceEmpty
	}
	return tokens, nil
}

type AlignResult struct {
	Words            Timeline
	Applied          bool
	ReferenceCount   int
	TranscribedCount int
}

// AlignReference puts reference words onto transcribed timing when the word
// counts are within tolerance of each other (relative to the transcribed
// count). Outside the band the transcription is kept verbatim: timing wins
// over text fidelity.
func AlignReference(transcribed Timeline, reference string, tolerance float64) (AlignResult, error) {
	res := AlignResult{Words: transcribed, TranscribedCount: len(transcribed)}
	if strings.TrimSpace(reference) == "" {
		return res, nil
	}
	tokens, err := ReferenceTokens(reference)
	if err != nil {
		return res, err
	}
	res.ReferenceCount = len(tokens)
	if len(transcribed) == 0 {
		return res, nil
	}
	diff := math.Abs(float64(len(tokens)-len(transcribed))) / float64(len(transcribed))
	if diff > tolerance {
		return res, nil
	}
	res.Words = splice(transcribed, tokens)
	res.Applied = true
	return res, nil
}

// splice maps reference token j onto the fractional span
// [j*nT/nR, (j+1)*nT/nR) of the transcribed word index space. With equal
// counts this is a one-to-one copy of timing.
func splice(transcribed Timeline, tokens []string) Timeline {
	nT := float64(len(transcribed))
	nR := float64(len(tokens))
	out := make(Timeline, len(tokens))
	for j, tok := range tokens {
		lo := float64(j) * nT / nR
		hi := float64(j+1) * nT / nR
		start := timeAt(transcribed, lo, false)
		end := timeAt(transcribed, hi, true)
		if end < start {
			end = start
		}
		out[j] = Word{Text: tok, Start: start, End: end}
	}
	return out
}

// timeAt interpolates a time at fractional word index x. For span ends an
// exact integer index k resolves to the end of word k-1.
func timeAt(tl Timeline, x float64, isEnd bool) float64 {
	i := int(math.Floor(x + 1e-9))
	frac := x - float64(i)
	if frac < 1e-9 {
		frac = 0
	}
	if isEnd && frac == 0 && i > 0 {
		return tl[i-1].End
	}
	if i >= len(tl) {
		return tl[len(tl)-1].End
	}
	w := tl[i]
	return w.Start + frac*(w.End-w.Start)
}
