package combiner

import (
	"strings"
	"unicode"
)

// fillerWords are stripped as standalone tokens by Clean. Matching is
// case-insensitive and word-bounded so "like" inside "likely" survives.
var fillerWords = map[string]bool{
	"um":       true,
	"uh":       true,
	"ah":       true,
	"er":       true,
	"like":     true,
	"you know": true,
}

// Clean is a best-effort text-cleaning routine applied to a paragraph's
// raw ASR text before display: it strips filler words, collapses an
// immediately repeated token, and capitalizes the first letter of each
// sentence. It must never change semantic content, only cosmetic noise.
func Clean(raw string) string {
	tokens := strings.Fields(raw)
	out := make([]string, 0, len(tokens))
	var prev string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		bare := strings.Trim(strings.ToLower(tok), ".,!?")
		if bare == "you" && i+1 < len(tokens) && strings.Trim(strings.ToLower(tokens[i+1]), ".,!?") == "know" {
			i++
			continue
		}
		if fillerWords[bare] {
			continue
		}
		if bare != "" && bare == prev {
			continue
		}
		out = append(out, tok)
		prev = bare
	}

	return capitalizeSentences(strings.Join(out, " "))
}

func capitalizeSentences(text string) string {
	r := []rune(text)
	capitalizeNext := true
	for i, c := range r {
		if capitalizeNext && unicode.IsLetter(c) {
			r[i] = unicode.ToUpper(c)
			capitalizeNext = false
			continue
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			capitalizeNext = false
		}
		switch c {
		case '.', '!', '?':
			capitalizeNext = true
		}
	}
	return string(r)
}
