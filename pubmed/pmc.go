package pubmed

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"pubmedkit/envelope"
	"pubmedkit/ids"
	"pubmedkit/pmc"
	"pubmedkit/pmerror"
)

// FetchPmcArticle fetches and parses a PMC full-text article by PMCID
// (accepted with or without its "PMC" prefix).
func (c *Client) FetchPmcArticle(ctx context.Context, pmcid string) (*pmc.Article, error) {
	parsed, err := ids.ParsePmcId(pmcid)
	if err != nil {
		return nil, &pmerror.InvalidPmcid{Pmcid: pmcid, Cause: err}
	}
	params := url.Values{
		"db":      {"pmc"},
		"id":      {strconv.FormatUint(uint64(parsed), 10)},
		"retmode": {"xml"},
	}
	body, err := c.exec.Get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, err
	}
	return pmc.Parse(string(body))
}

// CheckPmcAvailability reports whether pmid has a linked PMC record, and the
// canonical PMCID if so.
func (c *Client) CheckPmcAvailability(ctx context.Context, pmid string) (string, bool, error) {
	if _, err := ids.ParsePubMedId(pmid); err != nil {
		return "", false, &pmerror.InvalidPmid{Pmid: pmid, Cause: err}
	}
	found, err := c.elinkIds(ctx, []string{pmid}, "pubmed_pmc")
	if err != nil {
		return "", false, err
	}
	if len(found) == 0 {
		return "", false, nil
	}
	parsed, err := ids.ParsePmcId(found[0])
	if err != nil {
		return found[0], true, nil
	}
	return parsed.String(), true, nil
}

// IsOaSubset queries the PMC OA subset web service for pmcid, returning its
// licensing and download-link record. PmcNotAvailable if NCBI reports no
// record or an <error> element.
func (c *Client) IsOaSubset(ctx context.Context, pmcid string) (*envelope.OAInfo, error) {
	parsed, err := ids.ParsePmcId(pmcid)
	if err != nil {
		return nil, &pmerror.InvalidPmcid{Pmcid: pmcid, Cause: err}
	}
	body, err := c.oaExec.Get(ctx, "", url.Values{"id": {parsed.String()}})
	if err != nil {
		return nil, err
	}
	info, err := envelope.ParseOAResponse(body)
	if err != nil {
		var notAvailable *pmerror.PmcNotAvailable
		if errors.As(err, &notAvailable) {
			notAvailable.Pmcid = parsed.String()
			return nil, notAvailable
		}
		return nil, err
	}
	return info, nil
}
