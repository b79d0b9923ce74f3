// Package pubmed is the public facade (C12): it glues the request executor,
// the response-envelope decoders, and the MEDLINE/PMC parsers into the
// operations callers actually want, and through a small adapter over Client
// it satisfies history.Backend so search_all can delegate straight into the
// streaming producer.
package pubmed

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"pubmedkit/config"
	"pubmedkit/envelope"
	"pubmedkit/history"
	"pubmedkit/ids"
	"pubmedkit/internal/log"
	"pubmedkit/medline"
	"pubmedkit/pmerror"
	"pubmedkit/ratelimit"
	"pubmedkit/retry"
	"pubmedkit/transport"
)

const (
	maxSearchLimit = 9999
	fetchBatchSize = 200
)

// SearchResult is the outcome of a search operation, optionally carrying a
// usable HistorySession when the search was performed with usehistory=y.
type SearchResult struct {
	Pmids            []string
	TotalCount       int
	WebEnv           string
	QueryKey         string
	QueryTranslation string
}

// Session returns the history.Session this result carries, which is only
// meaningful when WebEnv and QueryKey are both set.
func (r SearchResult) Session() history.Session {
	return history.Session{WebEnv: r.WebEnv, QueryKey: r.QueryKey}
}

// Client is the facade over NCBI's E-utilities and the PMC OA subset
// service. It is safe for concurrent use: the rate limiter and HTTP
// transport it wraps are the only shared state, and both already tolerate
// concurrent callers.
type Client struct {
	exec   *transport.Executor
	oaExec *transport.Executor
	logger *zap.Logger
}

// New builds a Client from cfg, wiring the rate limiter, retry driver, and
// (uniformly, for both the E-utilities and OA executors) the same
// credentials and user agent.
func New(cfg config.ClientConfig) *Client {
	logger := log.OrNop(cfg.Logger)
	limiter := ratelimit.New(cfg.EffectiveRate())
	retryDriver := retry.New(cfg.RetryConfig, limiter, logger)
	creds := transport.Credentials{APIKey: cfg.APIKey, Email: cfg.Email, Tool: cfg.Tool}
	userAgent := cfg.EffectiveUserAgent()

	var breaker, oaBreaker *gobreaker.CircuitBreaker
	if cfg.CircuitBreaker {
		breaker = transport.NewBreaker("eutils")
		oaBreaker = transport.NewBreaker("pmc-oa")
	}

	exec := transport.NewExecutor(cfg.BaseURL, cfg.Timeout, creds, userAgent, limiter, retryDriver, breaker, logger)
	oaBase := cfg.OABaseURL
	if oaBase == "" {
		oaBase = config.DefaultOABaseURL
	}
	oaExec := transport.NewExecutor(oaBase, cfg.Timeout, creds, userAgent, limiter, retryDriver, oaBreaker, logger)

	return &Client{exec: exec, oaExec: oaExec, logger: logger}
}

func (c *Client) warn(pmid string, err error) {
	c.logger.Warn("skipping article that failed to parse", zap.String("pmid", pmid), zap.Error(err))
}

func validatePmids(pmids []string) error {
	for _, p := range pmids {
		if _, err := ids.ParsePubMedId(p); err != nil {
			return &pmerror.InvalidPmid{Pmid: p, Cause: err}
		}
	}
	return nil
}

func joinIDs(pmids []string) string {
	return strings.Join(pmids, ",")
}

// extractErrorTag reports the message of a top-level <ERROR>…</ERROR> tag in
// an XML body, if any. EFetch-from-history is the one endpoint that embeds
// this inside an otherwise 200 OK XML response.
func extractErrorTag(body []byte) (string, bool) {
	s := string(body)
	start := strings.Index(s, "<ERROR>")
	if start == -1 {
		return "", false
	}
	rest := s[start+len("<ERROR>"):]
	end := strings.Index(rest, "</ERROR>")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// SearchArticles runs an esearch and returns the ordered PMIDs. An empty
// query returns an empty list without issuing any request.
func (c *Client) SearchArticles(ctx context.Context, query string, limit int, sort string) ([]string, error) {
	if query == "" {
		return nil, nil
	}
	if limit > maxSearchLimit {
		return nil, &pmerror.SearchLimitExceeded{Requested: limit, Maximum: maxSearchLimit}
	}
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(limit)},
	}
	if sort != "" {
		params.Set("sort", sort)
	}
	body, err := c.exec.Get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}
	res, err := envelope.ParseESearch(body)
	if err != nil {
		return nil, err
	}
	return res.IdList, nil
}

// searchWithHistoryRaw is the shared implementation behind the public
// SearchWithHistory and the history.Backend adapter below.
func (c *Client) searchWithHistoryRaw(ctx context.Context, query string, limit int, sort string) ([]string, int, history.Session, string, error) {
	if query == "" {
		return nil, 0, history.Session{}, "", nil
	}
	if limit > maxSearchLimit {
		return nil, 0, history.Session{}, "", &pmerror.SearchLimitExceeded{Requested: limit, Maximum: maxSearchLimit}
	}
	params := url.Values{
		"db":         {"pubmed"},
		"term":       {query},
		"retmode":    {"json"},
		"retmax":     {strconv.Itoa(limit)},
		"usehistory": {"y"},
	}
	if sort != "" {
		params.Set("sort", sort)
	}
	body, err := c.exec.Get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, 0, history.Session{}, "", err
	}
	res, err := envelope.ParseESearch(body)
	if err != nil {
		return nil, 0, history.Session{}, "", err
	}
	return res.IdList, res.Count, history.Session{WebEnv: res.WebEnv, QueryKey: res.QueryKey}, res.Translation, nil
}

// SearchWithHistory runs an esearch with usehistory=y and returns a
// SearchResult. If pmids come back nonempty but NCBI omitted the webenv or
// query_key, this fails with WebEnvNotAvailable.
func (c *Client) SearchWithHistory(ctx context.Context, query string, limit int, sort string) (*SearchResult, error) {
	pmids, total, session, translation, err := c.searchWithHistoryRaw(ctx, query, limit, sort)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Pmids: pmids, TotalCount: total, QueryTranslation: translation}
	if len(pmids) > 0 {
		if session.WebEnv == "" || session.QueryKey == "" {
			return nil, &pmerror.WebEnvNotAvailable{}
		}
		result.WebEnv = session.WebEnv
		result.QueryKey = session.QueryKey
	}
	return result, nil
}

func (c *Client) efetchPubmed(ctx context.Context, pmids []string) ([]byte, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {joinIDs(pmids)},
		"retmode": {"xml"},
		"rettype": {"abstract"},
	}
	return c.exec.Get(ctx, "efetch.fcgi", params)
}

// FetchArticles fetches the full MEDLINE records for pmids, in batches of
// fetchBatchSize. Every PMID is validated before any request is issued, so a
// single malformed entry aborts the whole call with zero HTTP traffic.
func (c *Client) FetchArticles(ctx context.Context, pmids []string) ([]medline.Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	if err := validatePmids(pmids); err != nil {
		return nil, err
	}
	var all []medline.Article
	for i := 0; i < len(pmids); i += fetchBatchSize {
		end := i + fetchBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		body, err := c.efetchPubmed(ctx, pmids[i:end])
		if err != nil {
			return nil, err
		}
		articles, err := medline.ParseArticleSet(string(body), c.warn)
		if err != nil {
			return nil, err
		}
		all = append(all, articles...)
	}
	return all, nil
}

// FetchArticle fetches a single MEDLINE record by PMID, failing with
// ArticleNotFound if the response carries no matching article.
func (c *Client) FetchArticle(ctx context.Context, pmid string) (*medline.Article, error) {
	if _, err := ids.ParsePubMedId(pmid); err != nil {
		return nil, &pmerror.InvalidPmid{Pmid: pmid, Cause: err}
	}
	body, err := c.efetchPubmed(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	return medline.ParseSingleArticle(string(body), pmid)
}

// FetchFromHistory fetches retmax articles starting at retstart from a
// previously opened history session. Its signature matches
// history.Backend's FetchFromHistory.
func (c *Client) FetchFromHistory(ctx context.Context, session history.Session, retstart, retmax int) ([]medline.Article, error) {
	params := url.Values{
		"db":        {"pubmed"},
		"query_key": {session.QueryKey},
		"WebEnv":    {session.WebEnv},
		"retstart":  {strconv.Itoa(retstart)},
		"retmax":    {strconv.Itoa(retmax)},
		"retmode":   {"xml"},
		"rettype":   {"abstract"},
	}
	body, err := c.exec.Get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, err
	}
	if msg, ok := extractErrorTag(body); ok {
		return nil, &pmerror.HistorySessionError{Message: msg}
	}
	return medline.ParseArticleSet(string(body), c.warn)
}

// FetchAllByPmids posts pmids into a history session and fetches them back
// in batches of fetchBatchSize.
func (c *Client) FetchAllByPmids(ctx context.Context, pmids []string) ([]medline.Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	if err := validatePmids(pmids); err != nil {
		return nil, err
	}
	session, err := c.EPost(ctx, pmids)
	if err != nil {
		return nil, err
	}
	total := len(pmids)
	var all []medline.Article
	for offset := 0; offset < total; offset += fetchBatchSize {
		retmax := fetchBatchSize
		if offset+retmax > total {
			retmax = total - offset
		}
		articles, err := c.FetchFromHistory(ctx, *session, offset, retmax)
		if err != nil {
			return nil, err
		}
		all = append(all, articles...)
	}
	return all, nil
}

// SearchAndFetch runs a search followed by a batched fetch, skipping (rather
// than aborting on) any individual PMID that comes back ArticleNotFound.
// NCBI's esearch and efetch indices are not perfectly synchronized, so a
// PMID search returns can occasionally 404 on fetch.
func (c *Client) SearchAndFetch(ctx context.Context, query string, limit int, sort string) ([]medline.Article, error) {
	pmids, err := c.SearchArticles(ctx, query, limit, sort)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}
	var articles []medline.Article
	for i := 0; i < len(pmids); i += fetchBatchSize {
		end := i + fetchBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		batch, err := c.FetchArticles(ctx, pmids[i:end])
		if err != nil {
			var notFound *pmerror.ArticleNotFound
			if errors.As(err, &notFound) {
				c.warn(notFound.Pmid, err)
				continue
			}
			return nil, err
		}
		articles = append(articles, batch...)
	}
	return articles, nil
}

// historyBackend adapts Client to history.Backend's exact SearchWithHistory
// signature, which differs from the richer public SearchWithHistory (it
// returns a *SearchResult, not the (pmids, total, session, err) tuple the
// streaming producer wants to consume directly).
type historyBackend struct{ c *Client }

func (b *historyBackend) SearchWithHistory(ctx context.Context, query string, batchSize int, sort string) ([]string, int, history.Session, error) {
	pmids, total, session, _, err := b.c.searchWithHistoryRaw(ctx, query, batchSize, sort)
	return pmids, total, session, err
}

func (b *historyBackend) FetchFromHistory(ctx context.Context, session history.Session, retstart, retmax int) ([]medline.Article, error) {
	return b.c.FetchFromHistory(ctx, session, retstart, retmax)
}

// SearchAll delegates to history.Stream, returning a channel that yields
// every matching article across as many EFetch pages as the result set
// requires.
func (c *Client) SearchAll(ctx context.Context, query string, batchSize int) (<-chan history.Item, error) {
	return history.Stream(ctx, &historyBackend{c}, query, batchSize, "")
}

// FetchSummaries fetches esummary records for pmids, skipping per-UID
// entries the response omits, fails to decode, or reports as errors
// (ParseESummary already does this).
func (c *Client) FetchSummaries(ctx context.Context, pmids []string) ([]envelope.ESummaryDocument, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	if err := validatePmids(pmids); err != nil {
		return nil, err
	}
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {joinIDs(pmids)},
		"retmode": {"json"},
	}
	body, err := c.exec.Get(ctx, "esummary.fcgi", params)
	if err != nil {
		return nil, err
	}
	return envelope.ParseESummary(body)
}
