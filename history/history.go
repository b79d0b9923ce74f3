// Package history implements the incremental streaming producer over a
// WebEnv/query_key history session (C10): search once with usehistory=y,
// then page through EFetch batches as a lazily-consumed sequence.
package history

import (
	"context"

	"pubmedkit/medline"
	"pubmedkit/pmerror"
)

// Session identifies a server-side NCBI history result set. NCBI keeps a
// session live for roughly an hour of inactivity; callers must tolerate
// expiry (surfaced as a HistorySessionError) by re-searching.
type Session struct {
	WebEnv   string
	QueryKey string
}

// Backend is the subset of the facade client a Stream needs: an initial
// history search and repeated history-scoped EFetch batches. pubmed.Client
// satisfies this through a private adapter, since its public
// SearchWithHistory returns a *SearchResult.
type Backend interface {
	SearchWithHistory(ctx context.Context, query string, batchSize int, sort string) (pmids []string, totalCount int, session Session, err error)
	FetchFromHistory(ctx context.Context, session Session, retstart, retmax int) ([]medline.Article, error)
}

// Item is one element of a Stream: either an Article or a terminal error.
// After an Item with a non-nil Err, the stream channel is closed and no
// further items are sent.
type Item struct {
	Article medline.Article
	Err     error
}

// Stream opens a history session for query and returns a channel yielding
// every matching article across as many EFetch pages as total_count
// requires, batchSize articles at a time. Cancelling ctx stops further
// fetches at the next suspension point; no finalization I/O is performed.
//
// An empty initial result yields a stream that is immediately closed with
// no items. A nonempty result lacking a WebEnv or query_key fails Stream
// itself with WebEnvNotAvailable, before any channel is created.
func Stream(ctx context.Context, backend Backend, query string, batchSize int, sort string) (<-chan Item, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	pmids, total, session, err := backend.SearchWithHistory(ctx, query, batchSize, sort)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		ch := make(chan Item)
		close(ch)
		return ch, nil
	}
	if session.WebEnv == "" || session.QueryKey == "" {
		return nil, &pmerror.WebEnvNotAvailable{}
	}

	ch := make(chan Item)
	go run(ctx, backend, session, total, batchSize, ch)
	return ch, nil
}

// run drives the Fetching state: current_offset advances by batchSize (the
// pagination stride NCBI's retstart expects) each round, regardless of how
// many articles a given page actually parsed, since retstart addresses
// positions in the server-side result set, not this client's parse
// successes. An empty page ends the stream defensively, even if
// current_offset has not yet reached total_count.
func run(ctx context.Context, backend Backend, session Session, total, batchSize int, ch chan<- Item) {
	defer close(ch)
	offset := 0
	for offset < total {
		articles, err := backend.FetchFromHistory(ctx, session, offset, batchSize)
		if err != nil {
			select {
			case ch <- Item{Err: err}:
			case <-ctx.Done():
			}
			return
		}
		if len(articles) == 0 {
			return
		}
		for _, a := range articles {
			select {
			case ch <- Item{Article: a}:
			case <-ctx.Done():
				return
			}
		}
		offset += batchSize
	}
}

// Collect drains a Stream's channel into a slice, returning the first error
// encountered, if any. Intended for callers and tests that don't need
// incremental consumption.
func Collect(ch <-chan Item) ([]medline.Article, error) {
	var articles []medline.Article
	for item := range ch {
		if item.Err != nil {
			return articles, item.Err
		}
		articles = append(articles, item.Article)
	}
	return articles, nil
}
