package lyrics

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

var defaultProfanity = []string{
	"fuck", "fucking", "fucked", "fucker", "motherfucker",
	"shit", "shitty", "bullshit",
	"bitch", "bitches",
	"ass", "asshole",
	"damn", "goddamn",
	"dick", "pussy", "cunt",
	"bastard", "whore", "slut",
	"nigga", "nigger",
}

// ProfanityFilter masks listed words for "clean version" renders. It only
// touches Word.Text; timing is never changed.
type ProfanityFilter struct {
	words map[string]struct{}
}

type profanityFile struct {
	Words []string `yaml:"words"`
}

func NewProfanityFilter(extra ...string) *ProfanityFilter {
	f := &ProfanityFilter{words: make(map[string]struct{}, len(defaultProfanity)+len(extra))}
	for _, w := range defaultProfanity {
		f.add(w)
	}
	for _, w := range extra {
		f.add(w)
	}
	return f
}

// LoadProfanityFilter extends the built-in list with a YAML file of the
// form `words: [...]`. An empty path yields the built-in list.
func LoadProfanityFilter(path string) (*ProfanityFilter, error) {
	if strings.TrimSpace(path) == "" {
		return NewProfanityFilter(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profanity list: %w", err)
	}
	var pf profanityFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse profanity list: %w", err)
	}
	return NewProfanityFilter(pf.Words...), nil
}

func (f *ProfanityFilter) add(w string) {
	w = strings.ToLower(strings.TrimSpace(w))
	if w != "" {
		f.words[w] = struct{}{}
	}
}

func (f *ProfanityFilter) Contains(token string) bool {
	_, core, _ := splitPunct(token)
	_, ok := f.words[strings.ToLower(core)]
	return ok
}

// Apply returns a new timeline with listed words masked.
func (f *ProfanityFilter) Apply(tl Timeline) Timeline {
	out := make(Timeline, len(tl))
	for i, w := range tl {
		out[i] = w
		out[i].Text = f.Censor(w.Text)
	}
	return out
}

// Censor keeps the first letter and surrounding punctuation and masks the
// rest: "shit!" -> "s***!". A masked token is never itself on the list.
func (f *ProfanityFilter) Censor(token string) string {
	lead, core, trail := splitPunct(token)
	if _, ok := f.words[strings.ToLower(core)]; !ok {
		return token
	}
	runes := []rune(core)
	return lead + string(runes[0]) + strings.Repeat("*", len(runes)-1) + trail
}

func splitPunct(token string) (lead, core, trail string) {
	runes := []rune(token)
	start, end := 0, len(runes)
	for start < end && !isWordRune(runes[start]) {
		start++
	}
	for end > start && !isWordRune(runes[end-1]) {
		end--
	}
	return string(runes[:start]), string(runes[start:end]), string(runes[end:])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
