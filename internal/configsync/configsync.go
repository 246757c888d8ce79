package configsync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aivis/backend/internal/mentions"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/pkg/logger"
)

// PrimaryCompetitorName is the brand this deployment benchmarks. A config
// that drops it would make every visibility metric meaningless, so saves are
// rejected before any write.
const PrimaryCompetitorName = "Highcharts"

// Store is the slice of the analytical store the reconciler writes through.
type Store interface {
	AllPrompts(ctx context.Context) ([]models.PromptQuery, error)
	UpsertPrompts(ctx context.Context, rows []models.PromptQuery) error
	UpdatePrompt(ctx context.Context, id string, patch map[string]any) error
	AllCompetitors(ctx context.Context) ([]models.Competitor, error)
	UpsertCompetitors(ctx context.Context, rows []models.Competitor) error
	UpdateCompetitor(ctx context.Context, id string, patch map[string]any) error
	Aliases(ctx context.Context) ([]models.CompetitorAlias, error)
	UpsertAliases(ctx context.Context, rows []models.CompetitorAlias) error
	DeleteAlias(ctx context.Context, competitorID, alias string) error
}

// DesiredPrompt is one prompt row as edited by the operator.
type DesiredPrompt struct {
	QueryText string   `json:"query_text"`
	Tags      []string `json:"tags"`
	IsActive  bool     `json:"is_active"`
	SortOrder int      `json:"sort_order"`
}

// DesiredCompetitor is one competitor row plus its alias set.
type DesiredCompetitor struct {
	Name      string   `json:"name"`
	IsPrimary bool     `json:"is_primary"`
	IsActive  bool     `json:"is_active"`
	SortOrder int      `json:"sort_order"`
	Aliases   []string `json:"aliases"`
}

// DesiredConfig is the full operator-edited configuration.
type DesiredConfig struct {
	Prompts     []DesiredPrompt     `json:"prompts"`
	Competitors []DesiredCompetitor `json:"competitors"`
}

// SyncResult counts the writes a reconciliation performed. A re-run with
// unchanged input must report zero everywhere.
type SyncResult struct {
	PromptsUpserted        int `json:"prompts_upserted"`
	PromptsDeactivated     int `json:"prompts_deactivated"`
	CompetitorsUpserted    int `json:"competitors_upserted"`
	CompetitorsDeactivated int `json:"competitors_deactivated"`
	AliasesUpserted        int `json:"aliases_upserted"`
	AliasesDeleted         int `json:"aliases_deleted"`
}

// Writes is the total number of mutating statements issued.
func (r SyncResult) Writes() int {
	return r.PromptsUpserted + r.PromptsDeactivated +
		r.CompetitorsUpserted + r.CompetitorsDeactivated +
		r.AliasesUpserted + r.AliasesDeleted
}

// Reconciler applies desired configuration against stored rows.
type Reconciler struct {
	store Store
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Validate rejects configurations that must never reach the store.
func Validate(desired DesiredConfig) error {
	hasPrimary := false
	for _, c := range desired.Competitors {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("competitor with empty name")
		}
		if strings.EqualFold(strings.TrimSpace(c.Name), PrimaryCompetitorName) {
			hasPrimary = true
		}
	}
	if !hasPrimary {
		return fmt.Errorf("required competitor %q missing from config", PrimaryCompetitorName)
	}
	for _, p := range desired.Prompts {
		if strings.TrimSpace(p.QueryText) == "" {
			return fmt.Errorf("prompt with empty query text")
		}
		for _, t := range p.Tags {
			if t == models.TagDeleted {
				return fmt.Errorf("tag %q is reserved", models.TagDeleted)
			}
		}
	}
	return nil
}

// Sync reconciles the desired config in three passes: prompts, competitors,
// aliases. Removed rows are deactivated, never hard-deleted; soft-deleted
// prompts come back to life when their exact query text is re-added.
func (r *Reconciler) Sync(ctx context.Context, desired DesiredConfig) (SyncResult, error) {
	var result SyncResult

	if err := Validate(desired); err != nil {
		return result, fmt.Errorf("config rejected: %w", err)
	}

	if err := r.syncPrompts(ctx, desired.Prompts, &result); err != nil {
		return result, err
	}
	if err := r.syncCompetitors(ctx, desired.Competitors, &result); err != nil {
		return result, err
	}

	logger.Info("Config reconciled",
		zap.Int("writes", result.Writes()),
		zap.Int("prompts", len(desired.Prompts)),
		zap.Int("competitors", len(desired.Competitors)),
	)
	return result, nil
}

func (r *Reconciler) syncPrompts(ctx context.Context, desired []DesiredPrompt, result *SyncResult) error {
	existing, err := r.store.AllPrompts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load prompts for reconciliation: %w", err)
	}
	byText := map[string]models.PromptQuery{}
	for _, p := range existing {
		byText[p.QueryText] = p
	}

	var upserts []models.PromptQuery
	seen := map[string]struct{}{}
	for _, d := range desired {
		text := strings.TrimSpace(d.QueryText)
		seen[text] = struct{}{}

		want := models.PromptQuery{
			QueryText: text,
			Tags:      normalizeTags(d.Tags),
			IsActive:  d.IsActive,
			SortOrder: d.SortOrder,
		}
		current, exists := byText[text]
		if exists && promptEqual(current, want) {
			continue
		}
		// Re-adding a soft-deleted prompt clears the sentinel and
		// reactivates it; the upsert below writes the sentinel-free tag set.
		upserts = append(upserts, want)
	}
	if err := r.store.UpsertPrompts(ctx, upserts); err != nil {
		return err
	}
	result.PromptsUpserted = len(upserts)

	for _, p := range existing {
		if _, wanted := seen[p.QueryText]; wanted {
			continue
		}
		if !p.IsActive {
			continue
		}
		if err := r.store.UpdatePrompt(ctx, p.ID, map[string]any{"is_active": false}); err != nil {
			return err
		}
		result.PromptsDeactivated++
	}
	return nil
}

// SoftDeletePrompt marks a prompt with the reserved sentinel tag and
// deactivates it. The row stays so historical runs keep their linkage.
func (r *Reconciler) SoftDeletePrompt(ctx context.Context, prompt models.PromptQuery) error {
	if prompt.Deleted() {
		return nil
	}
	tags := append(normalizeTags(prompt.Tags), models.TagDeleted)
	err := r.store.UpdatePrompt(ctx, prompt.ID, map[string]any{
		"tags":      tags,
		"is_active": false,
	})
	if err != nil {
		return fmt.Errorf("failed to soft-delete prompt %s: %w", prompt.ID, err)
	}
	return nil
}

func (r *Reconciler) syncCompetitors(ctx context.Context, desired []DesiredCompetitor, result *SyncResult) error {
	existing, err := r.store.AllCompetitors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load competitors for reconciliation: %w", err)
	}
	bySlug := map[string]models.Competitor{}
	for _, c := range existing {
		bySlug[c.Slug] = c
	}

	var upserts []models.Competitor
	seen := map[string]struct{}{}
	for _, d := range desired {
		slug := mentions.Slugify(d.Name)
		seen[slug] = struct{}{}

		want := models.Competitor{
			Name:      strings.TrimSpace(d.Name),
			Slug:      slug,
			IsPrimary: d.IsPrimary,
			IsActive:  d.IsActive,
			SortOrder: d.SortOrder,
		}
		current, exists := bySlug[slug]
		if exists && competitorEqual(current, want) {
			continue
		}
		upserts = append(upserts, want)
	}
	if err := r.store.UpsertCompetitors(ctx, upserts); err != nil {
		return err
	}
	result.CompetitorsUpserted = len(upserts)

	for _, c := range existing {
		if _, wanted := seen[c.Slug]; wanted {
			continue
		}
		if !c.IsActive {
			continue
		}
		if err := r.store.UpdateCompetitor(ctx, c.ID, map[string]any{"is_active": false}); err != nil {
			return err
		}
		result.CompetitorsDeactivated++
	}

	return r.syncAliases(ctx, desired, result)
}

// syncAliases reconciles alias rows by set difference per competitor:
// upsert the desired set, delete what is stored but no longer wanted.
func (r *Reconciler) syncAliases(ctx context.Context, desired []DesiredCompetitor, result *SyncResult) error {
	// Upserts may have created rows; reload to resolve ids for new slugs.
	competitors, err := r.store.AllCompetitors(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload competitors for alias sync: %w", err)
	}
	idBySlug := map[string]string{}
	for _, c := range competitors {
		idBySlug[c.Slug] = c.ID
	}

	stored, err := r.store.Aliases(ctx)
	if err != nil {
		return fmt.Errorf("failed to load aliases for reconciliation: %w", err)
	}
	storedSet := map[string]map[string]struct{}{}
	for _, a := range stored {
		if storedSet[a.CompetitorID] == nil {
			storedSet[a.CompetitorID] = map[string]struct{}{}
		}
		storedSet[a.CompetitorID][a.Alias] = struct{}{}
	}

	var upserts []models.CompetitorAlias
	desiredSet := map[string]map[string]struct{}{}
	for _, d := range desired {
		id, ok := idBySlug[mentions.Slugify(d.Name)]
		if !ok {
			return fmt.Errorf("competitor %q missing after upsert", d.Name)
		}
		desiredSet[id] = map[string]struct{}{}
		for _, alias := range d.Aliases {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			desiredSet[id][alias] = struct{}{}
			if _, have := storedSet[id][alias]; !have {
				upserts = append(upserts, models.CompetitorAlias{CompetitorID: id, Alias: alias})
			}
		}
	}
	if err := r.store.UpsertAliases(ctx, upserts); err != nil {
		return err
	}
	result.AliasesUpserted = len(upserts)

	for competitorID, aliases := range storedSet {
		wanted, tracked := desiredSet[competitorID]
		if !tracked {
			// Competitor absent from this save; leave its aliases alone.
			continue
		}
		for alias := range aliases {
			if _, keep := wanted[alias]; keep {
				continue
			}
			if err := r.store.DeleteAlias(ctx, competitorID, alias); err != nil {
				return err
			}
			result.AliasesDeleted++
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || t == models.TagDeleted {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func promptEqual(current, want models.PromptQuery) bool {
	return current.IsActive == want.IsActive &&
		current.SortOrder == want.SortOrder &&
		tagsEqual(normalizeTags(current.Tags), want.Tags) &&
		!current.Deleted()
}

func competitorEqual(current, want models.Competitor) bool {
	return current.Name == want.Name &&
		current.IsPrimary == want.IsPrimary &&
		current.IsActive == want.IsActive &&
		current.SortOrder == want.SortOrder
}

func tagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
