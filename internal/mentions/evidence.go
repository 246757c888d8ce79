package mentions

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Evidence is the first sentence in which an entity was spotted.
type Evidence struct {
	Slug     string `json:"slug"`
	Sentence string `json:"sentence"`
}

const maxEvidenceLen = 280

// ExtractEvidence segments the response into sentences and returns, for each
// mentioned entity, the earliest sentence that triggered the match. Entities
// without a match get no entry.
func ExtractEvidence(text string, entities []*EntitySpec) ([]Evidence, error) {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to segment response text: %w", err)
	}

	sentences := doc.Sentences()
	out := make([]Evidence, 0, len(entities))
	for _, e := range entities {
		for _, s := range sentences {
			if !e.Matches(s.Text) {
				continue
			}
			out = append(out, Evidence{Slug: e.Slug, Sentence: clip(s.Text)})
			break
		}
	}
	return out, nil
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxEvidenceLen {
		return s
	}
	return s[:maxEvidenceLen-3] + "..."
}
