// Package query builds PubMed search expressions via fluent composition.
// Each call appends a term or a bracketed field filter to the accumulator;
// Build joins the term group and the filters with " AND ", matching the
// query syntax E-utilities' esearch endpoint accepts directly as `term`.
package query

import (
	"fmt"
	"strings"

	"pubmedkit/pmerror"
)

const (
	maxLimit       = 10000
	maxQueryLength = 4000
	defaultLimit   = 20

	farFutureYear = 3000
	farPastYear   = 1900
)

// SearchQuery accumulates free-text terms and bracketed field filters, then
// renders them into a single PubMed search expression.
type SearchQuery struct {
	terms   []string
	filters []string
	limit   int
	sort    string
}

// New starts an empty SearchQuery with the default result limit.
func New() *SearchQuery {
	return &SearchQuery{limit: defaultLimit}
}

// Query appends a free-text term to the term group.
func (q *SearchQuery) Query(term string) *SearchQuery {
	if term != "" {
		q.terms = append(q.terms, term)
	}
	return q
}

// SetLimit overrides the result limit.
func (q *SearchQuery) SetLimit(n int) *SearchQuery {
	q.limit = n
	return q
}

// Limit returns the configured result limit.
func (q *SearchQuery) Limit() int { return q.limit }

// SetSort overrides the requested sort order.
func (q *SearchQuery) SetSort(sort string) *SearchQuery {
	q.sort = sort
	return q
}

// Sort returns the configured sort order.
func (q *SearchQuery) Sort() string { return q.sort }

func (q *SearchQuery) filter(text, tag string) *SearchQuery {
	q.filters = append(q.filters, text+"["+tag+"]")
	return q
}

// Title filters on the article title field.
func (q *SearchQuery) Title(text string) *SearchQuery { return q.filter(text, "Title") }

// Abstract filters on the abstract field.
func (q *SearchQuery) Abstract(text string) *SearchQuery { return q.filter(text, "Abstract") }

// TitleAbstract filters on the combined title/abstract field.
func (q *SearchQuery) TitleAbstract(text string) *SearchQuery {
	return q.filter(text, "Title/Abstract")
}

// Journal filters on the full journal title.
func (q *SearchQuery) Journal(text string) *SearchQuery { return q.filter(text, "Journal") }

// JournalAbbreviation filters on the ISO journal title abbreviation.
func (q *SearchQuery) JournalAbbreviation(text string) *SearchQuery {
	return q.filter(text, "Journal Title Abbreviation")
}

// ISBN filters on an ISBN.
func (q *SearchQuery) ISBN(text string) *SearchQuery { return q.filter(text, "ISBN") }

// ISSN filters on an ISSN.
func (q *SearchQuery) ISSN(text string) *SearchQuery { return q.filter(text, "ISSN") }

// GrantNumber filters on a grant number.
func (q *SearchQuery) GrantNumber(text string) *SearchQuery {
	return q.filter(text, "Grant Number")
}

// Author filters on any author.
func (q *SearchQuery) Author(text string) *SearchQuery { return q.filter(text, "Author") }

// FirstAuthor filters on the first listed author.
func (q *SearchQuery) FirstAuthor(text string) *SearchQuery {
	return q.filter(text, "First Author")
}

// LastAuthor filters on the last listed author.
func (q *SearchQuery) LastAuthor(text string) *SearchQuery {
	return q.filter(text, "Last Author")
}

// Affiliation filters on author affiliation text.
func (q *SearchQuery) Affiliation(text string) *SearchQuery {
	return q.filter(text, "Affiliation")
}

// AuthorIdentifier filters on an author identifier, typically an ORCID.
func (q *SearchQuery) AuthorIdentifier(orcid string) *SearchQuery {
	return q.filter(orcid, "Author - Identifier")
}

// MeshTerms filters on MeSH descriptor terms.
func (q *SearchQuery) MeshTerms(text string) *SearchQuery { return q.filter(text, "MeSH Terms") }

// MeshMajorTopic filters on MeSH terms flagged as a major topic.
func (q *SearchQuery) MeshMajorTopic(text string) *SearchQuery {
	return q.filter(text, "MeSH Major Topic")
}

// MeshSubheading filters on a MeSH qualifier/subheading.
func (q *SearchQuery) MeshSubheading(text string) *SearchQuery {
	return q.filter(text, "MeSH Subheading")
}

// PublicationType filters on a raw publication-type string.
func (q *SearchQuery) PublicationType(text string) *SearchQuery { return q.filter(text, "pt") }

// Language filters on article language.
func (q *SearchQuery) Language(text string) *SearchQuery { return q.filter(text, "lang") }

// MeshHeadingFilter filters on a MeSH heading for humans/animals/age groups.
func (q *SearchQuery) MeshHeadingFilter(text string) *SearchQuery { return q.filter(text, "mh") }

// HasAbstract restricts results to articles carrying an abstract.
func (q *SearchQuery) HasAbstract() *SearchQuery {
	q.filters = append(q.filters, "hasabstract")
	return q
}

// OpenAccessOnly restricts results to the free-full-text subset.
func (q *SearchQuery) OpenAccessOnly() *SearchQuery {
	return q.filter("free full text", "sb")
}

// FullTextOnly restricts results to articles with any full text available.
func (q *SearchQuery) FullTextOnly() *SearchQuery {
	return q.filter("full text", "sb")
}

// DateBound is one endpoint of a date-range filter: a year, optionally
// narrowed to a month and then a day.
type DateBound struct {
	Year  int
	Month int
	Day   int
}

// Y builds a year-only DateBound.
func Y(year int) DateBound { return DateBound{Year: year} }

// YM builds a year/month DateBound.
func YM(year, month int) DateBound { return DateBound{Year: year, Month: month} }

// YMD builds a year/month/day DateBound.
func YMD(year, month, day int) DateBound { return DateBound{Year: year, Month: month, Day: day} }

func (d DateBound) render() string {
	switch {
	case d.Day != 0:
		return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
	case d.Month != 0:
		return fmt.Sprintf("%04d/%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d", d.Year)
	}
}

func (q *SearchQuery) dateRange(tag string, start DateBound, end *DateBound) *SearchQuery {
	e := DateBound{Year: farFutureYear}
	if end != nil {
		e = *end
	}
	q.filters = append(q.filters, start.render()+":"+e.render()+"["+tag+"]")
	return q
}

// PublishedBetween filters on publication date range. A nil end renders as
// the far-future year 3000.
func (q *SearchQuery) PublishedBetween(start DateBound, end *DateBound) *SearchQuery {
	return q.dateRange("pdat", start, end)
}

// PublishedAfter filters on publication date from start onward.
func (q *SearchQuery) PublishedAfter(start DateBound) *SearchQuery {
	return q.dateRange("pdat", start, nil)
}

// PublishedBefore filters on publication date up to end, from the far-past
// year 1900.
func (q *SearchQuery) PublishedBefore(end DateBound) *SearchQuery {
	return q.dateRange("pdat", DateBound{Year: farPastYear}, &end)
}

// PublishedInYear renders a single-year publication-date filter, YYYY[pdat].
func (q *SearchQuery) PublishedInYear(year int) *SearchQuery {
	return q.filter(Y(year).render(), "pdat")
}

// EnteredBetween filters on the date the record entered PubMed.
func (q *SearchQuery) EnteredBetween(start DateBound, end *DateBound) *SearchQuery {
	return q.dateRange("edat", start, end)
}

// ModifiedBetween filters on the date the record was last modified.
func (q *SearchQuery) ModifiedBetween(start DateBound, end *DateBound) *SearchQuery {
	return q.dateRange("mdat", start, end)
}

// ArticleType is one of the enumerated publication-type filter sets.
type ArticleType string

// Enumerated article-type sets.
const (
	ClinicalTrial             ArticleType = "Clinical Trial"
	Review                    ArticleType = "Review"
	SystematicReview          ArticleType = "Systematic Review"
	MetaAnalysis              ArticleType = "Meta-Analysis"
	CaseReport                ArticleType = "Case Reports"
	RandomizedControlledTrial ArticleType = "Randomized Controlled Trial"
	ObservationalStudy        ArticleType = "Observational Study"
)

// ArticleTypes emits a single "Type[pt]" filter for one type, or an
// "(T1[pt] OR T2[pt] OR …)" filter for multiple.
func (q *SearchQuery) ArticleTypes(types ...ArticleType) *SearchQuery {
	if len(types) == 0 {
		return q
	}
	if len(types) == 1 {
		q.filters = append(q.filters, string(types[0])+"[pt]")
		return q
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t) + "[pt]"
	}
	q.filters = append(q.filters, "("+strings.Join(parts, " OR ")+")")
	return q
}

// Build renders the accumulated term group and filters, joined by " AND ".
func (q *SearchQuery) Build() string {
	var parts []string
	if termGroup := strings.Join(q.terms, " AND "); termGroup != "" {
		parts = append(parts, termGroup)
	}
	parts = append(parts, q.filters...)
	return strings.Join(parts, " AND ")
}

// And composites this query with other: "(self) AND (other)" becomes the
// new, single accumulated term, and the combined limit is the maximum of the
// two. Existing filters fold into the composite term.
func (q *SearchQuery) And(other *SearchQuery) *SearchQuery {
	return q.compose("AND", other)
}

// Or composites this query with other: "(self) OR (other)".
func (q *SearchQuery) Or(other *SearchQuery) *SearchQuery {
	return q.compose("OR", other)
}

func (q *SearchQuery) compose(op string, other *SearchQuery) *SearchQuery {
	combined := "(" + q.Build() + ") " + op + " (" + other.Build() + ")"
	q.terms = []string{combined}
	q.filters = nil
	if other.limit > q.limit {
		q.limit = other.limit
	}
	return q
}

// Negate wraps the accumulated query as "NOT (self)".
func (q *SearchQuery) Negate() *SearchQuery {
	q.terms = []string{"NOT (" + q.Build() + ")"}
	q.filters = nil
	return q
}

// Exclude composites this query with other: "(self) NOT (other)".
func (q *SearchQuery) Exclude(other *SearchQuery) *SearchQuery {
	return q.compose("NOT", other)
}

// Group collapses the accumulated query into a single parenthesized term.
func (q *SearchQuery) Group() *SearchQuery {
	q.terms = []string{"(" + q.Build() + ")"}
	q.filters = nil
	return q
}

// Optimize de-duplicates terms and filters and removes empty entries.
func (q *SearchQuery) Optimize() *SearchQuery {
	q.terms = dedupeNonEmpty(q.terms)
	q.filters = dedupeNonEmpty(q.filters)
	return q
}

func dedupeNonEmpty(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Stats reports the term count, filter count, and a complexity score:
// AND counts 1x, OR/NOT count 2x each, and every open parenthesis counts
// once.
func (q *SearchQuery) Stats() (termCount, filterCount, complexity int) {
	built := q.Build()
	termCount = len(q.terms)
	filterCount = len(q.filters)
	complexity += strings.Count(built, " AND ")
	complexity += 2 * strings.Count(built, " OR ")
	complexity += 2 * strings.Count(built, "NOT ")
	complexity += strings.Count(built, "(")
	return
}

// Validate rejects an empty query, a limit outside (0, 10000], a query
// longer than 4000 characters, and unbalanced parentheses.
func (q *SearchQuery) Validate() error {
	built := q.Build()
	if built == "" {
		return &pmerror.InvalidQuery{Message: "query is empty"}
	}
	if len(built) > maxQueryLength {
		return &pmerror.InvalidQuery{Message: fmt.Sprintf("query exceeds %d characters", maxQueryLength)}
	}
	if q.limit <= 0 || q.limit > maxLimit {
		return &pmerror.InvalidQuery{Message: fmt.Sprintf("limit must be between 1 and %d, got %d", maxLimit, q.limit)}
	}
	if !balancedParens(built) {
		return &pmerror.InvalidQuery{Message: "unbalanced parentheses"}
	}
	return nil
}

func balancedParens(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}
