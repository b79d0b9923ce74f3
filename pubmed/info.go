package pubmed

import (
	"context"
	"net/url"

	"pubmedkit/envelope"
	"pubmedkit/history"
	"pubmedkit/pmerror"
)

// GetDatabaseList returns every database name EInfo knows about.
func (c *Client) GetDatabaseList(ctx context.Context) ([]string, error) {
	body, err := c.exec.Get(ctx, "einfo.fcgi", url.Values{"retmode": {"json"}})
	if err != nil {
		return nil, err
	}
	res, err := envelope.ParseEInfo(body)
	if err != nil {
		return nil, err
	}
	return res.DbList, nil
}

// GetDatabaseInfo returns the field/link descriptor for a single database.
// An empty name is rejected locally as a 400 without issuing a request.
func (c *Client) GetDatabaseInfo(ctx context.Context, db string) (*envelope.EInfoResult, error) {
	if db == "" {
		return nil, &pmerror.ApiError{Status: 400, Message: "database name is required"}
	}
	body, err := c.exec.Get(ctx, "einfo.fcgi", url.Values{"db": {db}, "retmode": {"json"}})
	if err != nil {
		return nil, err
	}
	return envelope.ParseEInfo(body)
}

// dedupeExcluding flattens the ids in order, dropping duplicates and any id
// present in exclude (used to strip the source PMIDs out of a
// get_related_articles result).
func dedupeExcluding(found []string, exclude []string) []string {
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, id := range found {
		if _, ok := excluded[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (c *Client) elinkIds(ctx context.Context, pmids []string, linkname string) ([]string, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	params := url.Values{
		"dbfrom":   {"pubmed"},
		"db":       {"pubmed"},
		"linkname": {linkname},
		"retmode":  {"json"},
	}
	for _, p := range pmids {
		params.Add("id", p)
	}
	body, err := c.exec.Get(ctx, "elink.fcgi", params)
	if err != nil {
		return nil, err
	}
	sets, err := envelope.ParseELink(body)
	if err != nil {
		return nil, err
	}
	var all []string
	for _, s := range sets {
		if s.LinkName != linkname {
			continue
		}
		all = append(all, s.Ids...)
	}
	return all, nil
}

// GetRelatedArticles returns the PubMed-related PMIDs for pmids, deduped and
// with the source PMIDs removed from the result.
func (c *Client) GetRelatedArticles(ctx context.Context, pmids []string) ([]string, error) {
	found, err := c.elinkIds(ctx, pmids, "pubmed_pubmed")
	if err != nil {
		return nil, err
	}
	return dedupeExcluding(found, pmids), nil
}

// GetPmcLinks returns the PMC IDs linked from pmids, deduped.
func (c *Client) GetPmcLinks(ctx context.Context, pmids []string) ([]string, error) {
	found, err := c.elinkIds(ctx, pmids, "pubmed_pmc")
	if err != nil {
		return nil, err
	}
	return dedupeExcluding(found, nil), nil
}

// GetCitations returns the PMIDs of articles citing pmids, deduped.
func (c *Client) GetCitations(ctx context.Context, pmids []string) ([]string, error) {
	found, err := c.elinkIds(ctx, pmids, "pubmed_pubmed_citedin")
	if err != nil {
		return nil, err
	}
	return dedupeExcluding(found, nil), nil
}

func (c *Client) epost(ctx context.Context, pmids []string, existing *history.Session) (*history.Session, error) {
	if len(pmids) == 0 {
		return nil, &pmerror.InvalidQuery{Message: "pmid list is empty"}
	}
	if err := validatePmids(pmids); err != nil {
		return nil, err
	}
	form := url.Values{
		"db":      {"pubmed"},
		"id":      {joinIDs(pmids)},
		"retmode": {"json"},
	}
	if existing != nil && existing.WebEnv != "" {
		form.Set("WebEnv", existing.WebEnv)
	}
	body, err := c.exec.Post(ctx, "epost.fcgi", form)
	if err != nil {
		return nil, err
	}
	res, err := envelope.ParseEPost(body)
	if err != nil {
		return nil, err
	}
	return &history.Session{WebEnv: res.WebEnv, QueryKey: res.QueryKey}, nil
}

// EPost uploads pmids to a new NCBI history session.
func (c *Client) EPost(ctx context.Context, pmids []string) (*history.Session, error) {
	return c.epost(ctx, pmids, nil)
}

// EPostToSession appends pmids to an existing history session.
func (c *Client) EPostToSession(ctx context.Context, pmids []string, session history.Session) (*history.Session, error) {
	return c.epost(ctx, pmids, &session)
}

// GlobalQuery runs EGQuery, returning the per-database hit counts.
func (c *Client) GlobalQuery(ctx context.Context, term string) ([]envelope.EGQueryItem, error) {
	if term == "" {
		return nil, &pmerror.InvalidQuery{Message: "term is empty"}
	}
	body, err := c.exec.Get(ctx, "egquery.fcgi", url.Values{"term": {term}})
	if err != nil {
		return nil, err
	}
	return envelope.ParseEGQuery(body)
}

// SpellCheck runs ESpell against the pubmed database.
func (c *Client) SpellCheck(ctx context.Context, term string) (*envelope.ESpellResult, error) {
	return c.SpellCheckDb(ctx, term, "pubmed")
}

// SpellCheckDb runs ESpell against db.
func (c *Client) SpellCheckDb(ctx context.Context, term, db string) (*envelope.ESpellResult, error) {
	if term == "" {
		return nil, &pmerror.InvalidQuery{Message: "term is empty"}
	}
	body, err := c.exec.Get(ctx, "espell.fcgi", url.Values{"db": {db}, "term": {term}})
	if err != nil {
		return nil, err
	}
	return envelope.ParseESpell(body)
}
