package pubmed

import (
	"context"
	"strings"

	"pubmedkit/envelope"
)

// CitationQuery is one reference to resolve via ECitMatch: journal, year,
// volume, first page, and first author, plus a caller-chosen key used to
// correlate the matching result line back to this query.
type CitationQuery struct {
	Journal string
	Year    string
	Volume  string
	Page    string
	Author  string
	Key     string
}

// bdata renders the five bibliographic fields plus key, pipe-delimited, with
// spaces turned into '+' the way NCBI's bdata parameter expects.
func (q CitationQuery) bdata() string {
	fields := []string{q.Journal, q.Year, q.Volume, q.Page, q.Author, q.Key, ""}
	joined := strings.Join(fields, "|")
	return strings.ReplaceAll(joined, " ", "+")
}

// MatchCitations resolves citations to PMIDs via ECitMatch. Each query's
// bdata line is joined with "%0D" before being sent, matching the literal
// separator NCBI's ecitmatch.cgi expects.
func (c *Client) MatchCitations(ctx context.Context, citations []CitationQuery) ([]envelope.CitationMatch, error) {
	if len(citations) == 0 {
		return nil, nil
	}
	lines := make([]string, len(citations))
	for i, q := range citations {
		lines[i] = q.bdata()
	}
	bdata := strings.Join(lines, "%0D")
	rawQuery := "db=pubmed&retmode=xml&bdata=" + bdata
	body, err := c.exec.GetRawQuery(ctx, "ecitmatch.cgi", rawQuery)
	if err != nil {
		return nil, err
	}
	return envelope.ParseECitMatch(body)
}
