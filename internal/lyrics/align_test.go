package lyrics

import (
	"errors"
	"strings"
	"testing"
)

func TestAlignReferenceEqualCountsCopiesTiming(t *testing.T) {
	tr := Timeline{{"hello", 1, 1.5}, {"wurld", 1.6, 2}, {"again", 2.2, 2.6}}
	res, err := AlignReference(tr, "Hello world, again", DefaultReferenceTolerance)
	if err != nil {
		t.Fatalf("AlignReference: %v", err)
	}
	if !res.Applied {
		t.Fatalf("applied: want=true")
	}
	want := Timeline{{"Hello", 1, 1.5}, {"world,", 1.6, 2}, {"again", 2.2, 2.6}}
	for i := range want {
		if res.Words[i] != want[i] {
			t.Fatalf("word %d: want=%+v got=%+v", i, want[i], res.Words[i])
		}
	}
}

func TestAlignReferenceWithinToleranceSplices(t *testing.T) {
	tr := evenTimeline(20, 1, 0.5)
	// 22 reference words: 10% over, inside the 15% band
	ref := strings.TrimSpace(strings.Repeat("la ", 22))
	res, err := AlignReference(tr, ref, 0.15)
	if err != nil {
		t.Fatalf("AlignReference: %v", err)
	}
	if !res.Applied || len(res.Words) != 22 {
		t.Fatalf("splice: applied=%v words=%d", res.Applied, len(res.Words))
	}
	if err := res.Words.Validate(); err != nil {
		t.Fatalf("spliced timeline invalid: %v", err)
	}
	if res.Words[0].Start != tr[0].Start {
		t.Fatalf("first start: want=%v got=%v", tr[0].Start, res.Words[0].Start)
	}
	if last := res.Words[len(res.Words)-1]; last.End != tr[len(tr)-1].End {
		t.Fatalf("last end: want=%v got=%v", tr[len(tr)-1].End, last.End)
	}
}

func TestAlignReferenceOutsideToleranceKeepsTranscription(t *testing.T) {
	tr := evenTimeline(20, 1, 0.5)
	ref := strings.TrimSpace(strings.Repeat("la ", 30))
	res, err := AlignReference(tr, ref, 0.15)
	if err != nil {
		t.Fatalf("AlignReference: %v", err)
	}
	if res.Applied {
		t.Fatalf("applied: want=false for 50%% divergence")
	}
	if len(res.Words) != 20 || res.Words[3].Text != "w3" {
		t.Fatalf("transcription must be kept verbatim")
	}
	if res.ReferenceCount != 30 || res.TranscribedCount != 20 {
		t.Fatalf("counts: got ref=%d tr=%d", res.ReferenceCount, res.TranscribedCount)
	}
}

func TestAlignReferenceDropsSectionTags(t *testing.T) {
	tokens, err := ReferenceTokens("[Verse 1]\nsun shines\n\n[Chorus]\nbright")
	if err != nil {
		t.Fatalf("ReferenceTokens: %v", err)
	}
	if strings.Join(tokens, "|") != "sun|shines|bright" {
		t.Fatalf("tokens: got=%v", tokens)
	}
}

func TestAlignReferenceMalformed(t *testing.T) {
	cases := map[string]error{
		"bad\x00text":                      ErrReferenceControlChar,
		"[Intro]":                          ErrReferenceEmpty,
		strings.Repeat("a", MaxReferenceChars+1): ErrReferenceTooLong,
	}
	for in, want := range cases {
		_, err := AlignReference(evenTimeline(3, 1, 0.5), in, 0.15)
		if !errors.Is(err, want) {
			t.Fatalf("AlignReference(%.10q): want=%v got=%v", in, want, err)
		}
	}
}

func TestAlignReferenceBlankIsNoop(t *testing.T) {
	tr := evenTimeline(3, 1, 0.5)
	res, err := AlignReference(tr, "   ", 0.15)
	if err != nil || res.Applied || len(res.Words) != 3 {
		t.Fatalf("blank reference: res=%+v err=%v", res, err)
	}
}

func TestProfanityFilterCensorsAndIsIdempotent(t *testing.T) {
	f := NewProfanityFilter("heck")
	tl := Timeline{{"Oh", 0, 0.2}, {"shit!", 0.3, 0.5}, {"what", 0.6, 0.7}, {"the", 0.8, 0.9}, {"HECK", 1, 1.2}}
	once := f.Apply(tl)
	if once[1].Text != "s***!" {
		t.Fatalf("censor: want=%q got=%q", "s***!", once[1].Text)
	}
	if once[4].Text != "H***" {
		t.Fatalf("censor: want=%q got=%q", "H***", once[4].Text)
	}
	if once[0].Text != "Oh" {
		t.Fatalf("clean word changed: %q", once[0].Text)
	}
	for i := range tl {
		if once[i].Start != tl[i].Start || once[i].End != tl[i].End {
			t.Fatalf("timing changed at %d", i)
		}
	}
	if tl[1].Text != "shit!" {
		t.Fatalf("input mutated")
	}
	twice := f.Apply(once)
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("not idempotent at %d: %q vs %q", i, once[i].Text, twice[i].Text)
		}
	}
	if f.Contains("s***") {
		t.Fatalf("censored form must not be listed")
	}
}
