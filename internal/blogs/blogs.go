package blogs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/aivis/backend/internal/mentions"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/pkg/logger"
)

// Store is the write path for scraped posts.
type Store interface {
	UpsertBlogPosts(ctx context.Context, rows []models.CompetitorBlogPost) error
}

// Ingester scrapes competitor blog indexes and persists post metadata, used
// to correlate publishing cadence with mention trends.
type Ingester struct {
	store      Store
	httpClient *http.Client
	batchSize  int
}

func NewIngester(store Store) *Ingester {
	return &Ingester{
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		batchSize:  50,
	}
}

var dateLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339,
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// IngestIndex fetches one blog index page and upserts every post link found
// on it. Returns the number of posts persisted.
func (i *Ingester) IngestIndex(ctx context.Context, indexURL string) (int, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return 0, fmt.Errorf("invalid blog index url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build blog request: %w", err)
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch blog index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("blog index %s returned %d", indexURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to parse blog index: %w", err)
	}

	source := normalizeSource(base.Hostname())
	posts := extractPosts(doc, base, source)
	if len(posts) == 0 {
		logger.Warn("No posts found on blog index", zap.String("url", indexURL))
		return 0, nil
	}

	for start := 0; start < len(posts); start += i.batchSize {
		end := start + i.batchSize
		if end > len(posts) {
			end = len(posts)
		}
		if err := i.store.UpsertBlogPosts(ctx, posts[start:end]); err != nil {
			return start, err
		}
	}

	logger.Info("Blog index ingested",
		zap.String("source", source),
		zap.Int("posts", len(posts)),
	)
	return len(posts), nil
}

func extractPosts(doc *goquery.Document, base *url.URL, source string) []models.CompetitorBlogPost {
	var posts []models.CompetitorBlogPost
	seen := map[string]struct{}{}

	doc.Find("article a[href], .post a[href], h2 a[href], h3 a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		title := strings.TrimSpace(sel.Text())
		if href == "" || title == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(ref)
		if absolute.Hostname() != base.Hostname() {
			return
		}
		postURL := absolute.String()
		if _, dup := seen[postURL]; dup {
			return
		}
		seen[postURL] = struct{}{}

		posts = append(posts, models.CompetitorBlogPost{
			Source:      source,
			Slug:        mentions.Slugify(title),
			Title:       title,
			URL:         postURL,
			PublishedAt: findPublishedAt(sel),
		})
	})
	return posts
}

// findPublishedAt looks for a <time> element near the link, preferring its
// datetime attribute over the display text.
func findPublishedAt(sel *goquery.Selection) *time.Time {
	timeSel := sel.Closest("article, .post, li, div").Find("time").First()
	if timeSel.Length() == 0 {
		return nil
	}

	candidates := []string{}
	if dt, ok := timeSel.Attr("datetime"); ok {
		candidates = append(candidates, dt)
	}
	candidates = append(candidates, strings.TrimSpace(timeSel.Text()))

	for _, candidate := range candidates {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return &t
			}
		}
	}
	return nil
}

func normalizeSource(hostname string) string {
	hostname = strings.TrimPrefix(hostname, "www.")
	hostname = strings.TrimPrefix(hostname, "blog.")
	return hostname
}
