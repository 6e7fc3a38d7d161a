package ai

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// FallbackFeedback replaces missing or blank model feedback.
	FallbackFeedback = "Automatic evaluation summary is unavailable. Please review manually."
	// MaxFeedbackLength caps stored feedback, in characters.
	MaxFeedbackLength = 2000
	// MinScore and MaxScore bound every coerced score.
	MinScore = 0
	MaxScore = 10

	highlightOpen  = "<b>"
	highlightClose = "</b>"
)

var quotedPhrasePattern = regexp.MustCompile(`["“”'‘’]([^"“”'‘’]+)["“”'‘’]`)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Coerce turns raw model output into a safe Result for submitText. It never fails;
// LatencyMs is left for the caller to fill in.
func Coerce(raw, submitText string) Result {
	fields := ParseLoose(raw)

	highlights := CoerceHighlights(fields["highlights"])
	effective := EffectiveHighlights(highlights)

	return Result{
		Score:         CoerceScore(fields["score"]),
		Feedback:      CoerceFeedback(fields["feedback"]),
		Highlights:    effective,
		AnnotatedText: Annotate(submitText, effective),
	}
}

// ParseLoose decodes raw as a JSON object. When strict decoding fails it retries on the
// span between the first '{' and the last '}'. Anything that is not an object ends up
// as an empty map.
func ParseLoose(raw string) map[string]interface{} {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return asObject(value)
	}

	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first != -1 && last > first {
		if err := json.Unmarshal([]byte(raw[first:last+1]), &value); err == nil {
			return asObject(value)
		}
	}

	return map[string]interface{}{}
}

func asObject(value interface{}) map[string]interface{} {
	if obj, ok := value.(map[string]interface{}); ok {
		return obj
	}
	return map[string]interface{}{}
}

// CoerceScore accepts a number or numeric string, rounds it and clamps it into [0,10].
func CoerceScore(value interface{}) int {
	score := 0.0
	switch v := value.(type) {
	case float64:
		score = v
	case json.Number:
		if parsed, err := v.Float64(); err == nil {
			score = parsed
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
				score = parsed
			}
		}
	}

	if math.IsNaN(score) {
		return MinScore
	}

	rounded := math.Round(score)
	switch {
	case rounded < MinScore:
		return MinScore
	case rounded > MaxScore:
		return MaxScore
	default:
		return int(rounded)
	}
}

// CoerceFeedback accepts only strings, trims them, substitutes the fallback sentence
// for blanks and truncates to MaxFeedbackLength characters.
func CoerceFeedback(value interface{}) string {
	text, _ := value.(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackFeedback
	}

	if utf8.RuneCountInString(text) > MaxFeedbackLength {
		runes := []rune(text)
		text = string(runes[:MaxFeedbackLength])
	}

	return text
}

// CoerceHighlights keeps the non-blank string entries of an array, trimmed and
// deduplicated in first-occurrence order.
func CoerceHighlights(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return []string{}
	}

	candidates := make([]string, 0, len(items))
	for _, item := range items {
		if text, ok := item.(string); ok {
			candidates = append(candidates, text)
		}
	}

	return uniqueTrimmed(candidates)
}

// ExtractQuotedPhrases returns every phrase enclosed in straight or curly quotes
// across items, trimmed and deduplicated.
func ExtractQuotedPhrases(items []string) []string {
	phrases := make([]string, 0, len(items))
	for _, item := range items {
		for _, match := range quotedPhrasePattern.FindAllStringSubmatch(item, -1) {
			phrases = append(phrases, match[1])
		}
	}
	return uniqueTrimmed(phrases)
}

// EffectiveHighlights swaps the highlight set for its quoted phrases when every
// highlight quotes something, which is how models phrase meta-commentary such as
// `Clear use of "for example"`.
func EffectiveHighlights(highlights []string) []string {
	if len(highlights) == 0 {
		return highlights
	}

	for _, item := range highlights {
		if !quotedPhrasePattern.MatchString(item) {
			return highlights
		}
	}

	quoted := ExtractQuotedPhrases(highlights)
	if len(quoted) == 0 {
		return highlights
	}
	return quoted
}

// EscapeHTML escapes &, < and >.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

type annotatedSegment struct {
	text   string
	marked bool
}

// Annotate wraps every case-sensitive occurrence of each phrase in <b></b> and
// HTML-escapes the rest. Phrases are matched against the raw text, longest first and
// only inside text that is not already wrapped, so markers never nest and entities
// are never split.
func Annotate(text string, phrases []string) string {
	if text == "" {
		return ""
	}

	ordered := uniqueTrimmed(phrases)
	if len(ordered) == 0 {
		return EscapeHTML(text)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return utf8.RuneCountInString(ordered[i]) > utf8.RuneCountInString(ordered[j])
	})

	segments := []annotatedSegment{{text: text}}
	for _, phrase := range ordered {
		pattern := regexp.MustCompile(regexp.QuoteMeta(phrase))
		next := make([]annotatedSegment, 0, len(segments))
		for _, segment := range segments {
			if segment.marked {
				next = append(next, segment)
				continue
			}
			next = append(next, splitSegment(segment.text, pattern)...)
		}
		segments = next
	}

	var builder strings.Builder
	builder.Grow(len(text) + len(segments)*(len(highlightOpen)+len(highlightClose)))
	for _, segment := range segments {
		if segment.marked {
			builder.WriteString(highlightOpen)
			builder.WriteString(EscapeHTML(segment.text))
			builder.WriteString(highlightClose)
			continue
		}
		builder.WriteString(EscapeHTML(segment.text))
	}
	return builder.String()
}

func splitSegment(text string, pattern *regexp.Regexp) []annotatedSegment {
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []annotatedSegment{{text: text}}
	}

	segments := make([]annotatedSegment, 0, len(matches)*2+1)
	cursor := 0
	for _, match := range matches {
		if match[0] > cursor {
			segments = append(segments, annotatedSegment{text: text[cursor:match[0]]})
		}
		segments = append(segments, annotatedSegment{text: text[match[0]:match[1]], marked: true})
		cursor = match[1]
	}
	if cursor < len(text) {
		segments = append(segments, annotatedSegment{text: text[cursor:]})
	}
	return segments
}

func uniqueTrimmed(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
