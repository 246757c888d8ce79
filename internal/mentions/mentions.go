package mentions

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// EntitySpec is one brand to detect, with its compiled alias matcher.
type EntitySpec struct {
	CompetitorID string
	Name         string
	Slug         string
	IsPrimary    bool
	Aliases      []string

	pattern *regexp.Regexp
}

// Slugify normalizes a display name into a stable slug: lowercase, runs of
// non-alphanumerics collapsed to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// NewEntitySpec compiles the alias matcher for one brand. The display name
// always counts as an alias; duplicates are folded case-insensitively.
//
// Matching is case-insensitive, tolerates any run of whitespace between the
// words of a multi-word alias, and requires non-alphanumeric boundaries on
// both sides so "Highcharts" does not match inside "HighchartsX".
func NewEntitySpec(competitorID, name string, isPrimary bool, aliases []string) (*EntitySpec, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("entity name is required")
	}

	seen := map[string]struct{}{}
	deduped := make([]string, 0, len(aliases)+1)
	for _, alias := range append([]string{name}, aliases...) {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		key := strings.ToLower(alias)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, alias)
	}

	parts := make([]string, 0, len(deduped))
	for _, alias := range deduped {
		words := strings.Fields(alias)
		quoted := make([]string, 0, len(words))
		for _, w := range words {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
		parts = append(parts, strings.Join(quoted, `\s+`))
	}

	// Longer aliases first so the alternation prefers the most specific form.
	sort.Slice(parts, func(i, j int) bool { return len(parts[i]) > len(parts[j]) })

	expr := `(?i)(?:^|[^a-zA-Z0-9])(?:` + strings.Join(parts, "|") + `)(?:[^a-zA-Z0-9]|$)`
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile alias pattern for %q: %w", name, err)
	}

	return &EntitySpec{
		CompetitorID: competitorID,
		Name:         name,
		Slug:         Slugify(name),
		IsPrimary:    isPrimary,
		Aliases:      deduped,
		pattern:      pattern,
	}, nil
}

// Matches reports whether any alias of the entity appears in text.
func (e *EntitySpec) Matches(text string) bool {
	return e.pattern.MatchString(text)
}

// Detection is one entity's presence verdict for a piece of text.
type Detection struct {
	CompetitorID string
	Slug         string
	Mentioned    bool
}

// Detect evaluates every entity against text. The result always has one
// entry per entity, mentioned or not, so downstream denominators stay stable.
func Detect(text string, entities []*EntitySpec) []Detection {
	out := make([]Detection, 0, len(entities))
	for _, e := range entities {
		out = append(out, Detection{
			CompetitorID: e.CompetitorID,
			Slug:         e.Slug,
			Mentioned:    e.Matches(text),
		})
	}
	return out
}
