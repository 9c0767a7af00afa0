// Package content reads laws, sections and scenarios from Postgres for
// keyword containment and pgvector nearest-neighbour search.
package content

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	domcontent "github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/content"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
)

const sectionColumns = "sections.id, sections.title, sections.content, " +
	"COALESCE(sections.summary, '') AS summary, sections.law_id, " +
	"laws.slug AS law_slug, laws.title AS law_title, laws.short_title AS law_short_title, " +
	"laws.description AS law_description, laws.is_active AS law_is_active"

const scenarioColumns = "scenarios.id, scenarios.title, scenarios.description, " +
	"COALESCE(array_to_string(scenarios.keywords, ', '), '') AS keywords"

// Store implements keyword and vector queries over the content tables.
type Store struct {
	db *gorm.DB
}

// New creates a content store on an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CountMatches counts rows of kind k containing f.Text, ignoring any page limit.
func (s *Store) CountMatches(ctx context.Context, k kind.Kind, f domcontent.Filter) (int64, error) {
	q, err := matchQuery(s.db.WithContext(ctx), k, f)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s matches: %w", k, err)
	}
	return n, nil
}

// FindMatches returns one page of rows of kind k containing f.Text.
func (s *Store) FindMatches(
	ctx context.Context, k kind.Kind, f domcontent.Filter, limit, offset int,
) ([]domcontent.Row, error) {
	q, err := findQuery(s.db.WithContext(ctx), k, f, limit, offset)
	if err != nil {
		return nil, err
	}

	switch k {
	case kind.Section:
		var rows []sectionRow
		if err := q.Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("find section matches: %w", err)
		}
		out := make([]domcontent.Row, len(rows))
		for i := range rows {
			out[i] = rows[i].toRow()
		}
		return out, nil

	case kind.Scenario:
		var rows []scenarioRow
		if err := q.Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("find scenario matches: %w", err)
		}
		out := make([]domcontent.Row, len(rows))
		for i := range rows {
			out[i] = rows[i].toRow()
		}
		return out, nil

	default:
		var laws []Law
		if err := q.Find(&laws).Error; err != nil {
			return nil, fmt.Errorf("find law matches: %w", err)
		}
		out := make([]domcontent.Row, len(laws))
		for i := range laws {
			out[i] = lawToRow(&laws[i])
		}
		return out, nil
	}
}

// NearestSections ranks embedded sections by cosine similarity to vec.
func (s *Store) NearestSections(
	ctx context.Context, vec []float32, f domcontent.VectorFilter,
) ([]domcontent.Hit, error) {
	var rows []sectionRow
	if err := nearestSectionsQuery(s.db.WithContext(ctx), vec, f).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("nearest sections: %w", err)
	}
	hits := make([]domcontent.Hit, len(rows))
	for i := range rows {
		hits[i] = domcontent.Hit{
			Row:        rows[i].toRow(),
			Similarity: domcontent.SimilarityFromCosineDistance(rows[i].Distance),
		}
	}
	return hits, nil
}

// NearestScenarios ranks embedded scenarios by cosine similarity to vec.
func (s *Store) NearestScenarios(
	ctx context.Context, vec []float32, f domcontent.VectorFilter,
) ([]domcontent.Hit, error) {
	var rows []scenarioRow
	if err := nearestScenariosQuery(s.db.WithContext(ctx), vec, f).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("nearest scenarios: %w", err)
	}
	hits := make([]domcontent.Hit, len(rows))
	for i := range rows {
		hits[i] = domcontent.Hit{
			Row:        rows[i].toRow(),
			Similarity: domcontent.SimilarityFromCosineDistance(rows[i].Distance),
		}
	}
	return hits, nil
}

// matchQuery builds the case-insensitive containment predicate for kind k.
// db must be a fresh session; each call chains its own statement off it.
func matchQuery(db *gorm.DB, k kind.Kind, f domcontent.Filter) (*gorm.DB, error) {
	p := sql.Named("p", containsPattern(f.Text))

	switch k {
	case kind.Section:
		q := db.Model(&Section{}).
			Joins("JOIN laws ON laws.id = sections.law_id").
			Where("(sections.title ILIKE @p OR sections.content ILIKE @p OR sections.summary ILIKE @p)", p)
		if len(f.LawIDs) > 0 {
			q = q.Where("sections.law_id IN ?", f.LawIDs)
		}
		return q, nil

	case kind.Scenario:
		q := db.Model(&Scenario{}).
			Where("(scenarios.title ILIKE @p OR scenarios.description ILIKE @p "+
				"OR array_to_string(scenarios.keywords, ' ') ILIKE @p)", p)
		if len(f.LawIDs) > 0 {
			q = q.Where("EXISTS (?)", scenarioLawLink(db, f.LawIDs))
		}
		return q, nil

	case kind.Law:
		q := db.Model(&Law{}).
			Where("laws.is_active = ?", true).
			Where("(laws.title ILIKE @p OR laws.short_title ILIKE @p OR laws.description ILIKE @p)", p)
		if len(f.LawIDs) > 0 {
			q = q.Where("laws.id IN ?", f.LawIDs)
		}
		return q, nil

	default:
		return nil, fmt.Errorf("unknown kind %q", k)
	}
}

// findQuery adds the per-kind columns, a stable order and the page window.
func findQuery(db *gorm.DB, k kind.Kind, f domcontent.Filter, limit, offset int) (*gorm.DB, error) {
	q, err := matchQuery(db, k, f)
	if err != nil {
		return nil, err
	}
	q = q.Limit(limit).Offset(offset)

	switch k {
	case kind.Section:
		return q.Select(sectionColumns).Order("sections.title, sections.id"), nil
	case kind.Scenario:
		return q.Select(scenarioColumns).Order("scenarios.title, scenarios.id"), nil
	default:
		return q.Order("laws.title, laws.id"), nil
	}
}

// scenarioLawLink is the correlated subquery tying a scenario to any of lawIDs.
func scenarioLawLink(db *gorm.DB, lawIDs []string) *gorm.DB {
	return db.Model(&ScenarioLaw{}).
		Select("1").
		Where("scenario_laws.scenario_id = scenarios.id AND scenario_laws.law_id IN ?", lawIDs)
}

func nearestSectionsQuery(db *gorm.DB, vec []float32, f domcontent.VectorFilter) *gorm.DB {
	v := pgvector.NewVector(vec)
	q := db.Model(&Section{}).
		Select(sectionColumns+", sections.embedding <=> ? AS distance", v).
		Joins("JOIN laws ON laws.id = sections.law_id").
		Where("sections.embedding IS NOT NULL")
	if f.MinSimilarity > 0 {
		q = q.Where("sections.embedding <=> ? <= ?", v, domcontent.MaxCosineDistance(f.MinSimilarity))
	}
	if len(f.LawIDs) > 0 {
		q = q.Where("sections.law_id IN ?", f.LawIDs)
	}
	return q.Order("distance, sections.id").Limit(f.Limit)
}

func nearestScenariosQuery(db *gorm.DB, vec []float32, f domcontent.VectorFilter) *gorm.DB {
	v := pgvector.NewVector(vec)
	q := db.Model(&Scenario{}).
		Select(scenarioColumns+", scenarios.embedding <=> ? AS distance", v).
		Where("scenarios.embedding IS NOT NULL")
	if f.MinSimilarity > 0 {
		q = q.Where("scenarios.embedding <=> ? <= ?", v, domcontent.MaxCosineDistance(f.MinSimilarity))
	}
	if len(f.LawIDs) > 0 {
		q = q.Where("EXISTS (?)", scenarioLawLink(db, f.LawIDs))
	}
	return q.Order("distance, scenarios.id").Limit(f.Limit)
}

func (r *sectionRow) toRow() domcontent.Row {
	return domcontent.Row{
		Kind:  kind.Section,
		ID:    r.ID,
		Title: r.Title,
		Body:  r.Content,
		Extra: r.Summary,
		Law: &domcontent.Law{
			ID:          r.LawID,
			Slug:        r.LawSlug,
			Title:       r.LawTitle,
			ShortTitle:  r.LawShortTitle,
			Description: r.LawDescription,
			Active:      r.LawIsActive,
		},
	}
}

func (r *scenarioRow) toRow() domcontent.Row {
	return domcontent.Row{
		Kind:  kind.Scenario,
		ID:    r.ID,
		Title: r.Title,
		Body:  r.Description,
		Extra: r.Keywords,
	}
}

func lawToRow(l *Law) domcontent.Row {
	return domcontent.Row{
		Kind:  kind.Law,
		ID:    l.ID,
		Title: l.Title,
		Body:  l.Description,
		Extra: l.ShortTitle,
		Law: &domcontent.Law{
			ID:          l.ID,
			Slug:        l.Slug,
			Title:       l.Title,
			ShortTitle:  l.ShortTitle,
			Description: l.Description,
			Active:      l.IsActive,
		},
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns text into a literal ILIKE containment pattern.
func containsPattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
