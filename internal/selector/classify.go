package selector

import (
	"regexp"
	"strings"
	"unicode"
)

// Complexity buckets a text by structural difficulty. Classification is a
// pure function of word count, average word length and non-alphanumeric
// density, so it needs no network calls and is deterministic.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Domain buckets a text by subject matter based on keyword pattern matches.
type Domain string

const (
	DomainGeneral   Domain = "general"
	DomainTechnical Domain = "technical"
	DomainMedical   Domain = "medical"
	DomainLegal     Domain = "legal"
	DomainCreative  Domain = "creative"
)

// ClassifyComplexity derives the complexity bucket for a text.
func ClassifyComplexity(text string) Complexity {
	words := strings.Fields(text)
	wordCount := len(words)
	if wordCount == 0 {
		return ComplexitySimple
	}

	totalWordLen := 0
	for _, w := range words {
		totalWordLen += len([]rune(w))
	}
	avgWordLen := float64(totalWordLen) / float64(wordCount)

	nonAlnum := 0
	total := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			nonAlnum++
		}
	}
	var symbolDensity float64
	if total > 0 {
		symbolDensity = float64(nonAlnum) / float64(total)
	}

	score := 0.0
	switch {
	case wordCount >= 60:
		score += 0.45
	case wordCount >= 20:
		score += 0.25
	case wordCount >= 8:
		score += 0.1
	}
	switch {
	case avgWordLen >= 9:
		score += 0.35
	case avgWordLen >= 6:
		score += 0.2
	}
	switch {
	case symbolDensity >= 0.25:
		score += 0.3
	case symbolDensity >= 0.1:
		score += 0.15
	}

	switch {
	case score >= 0.6:
		return ComplexityComplex
	case score >= 0.3:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

var domainPatterns = []struct {
	domain Domain
	re     *regexp.Regexp
}{
	{DomainMedical, regexp.MustCompile(`(?i)\b(diagnos\w*|patient|symptom\w*|dosage|prescri\w*|clinical|therap\w*|medication)\b`)},
	{DomainLegal, regexp.MustCompile(`(?i)\b(hereinafter|pursuant|liabilit\w*|contract\w*|clause|plaintiff|defendant|jurisdiction|warrant\w*)\b`)},
	{DomainTechnical, regexp.MustCompile(`(?i)\b(server\w*|deploy\w*|databas\w*|api|kernel|compil\w*|config\w*|endpoint|latency|kubernetes)\b`)},
	{DomainCreative, regexp.MustCompile(`(?i)\b(poem|novel|lyric\w*|stanza|metaphor\w*|protagonist|verse)\b`)},
}

// ClassifyDomain derives the domain bucket for a text. An explicit hint wins
// over keyword matching; with no hint the first matching pattern in priority
// order (medical, legal, technical, creative) decides.
func ClassifyDomain(text string, hint Domain) Domain {
	if hint != "" && hint != DomainGeneral {
		return hint
	}
	for _, p := range domainPatterns {
		if p.re.MatchString(text) {
			return p.domain
		}
	}
	return DomainGeneral
}
