package history

import (
	"context"
	"testing"

	"pubmedkit/medline"
	"pubmedkit/pmerror"
)

type fakeBackend struct {
	pmids      []string
	total      int
	session    Session
	searchErr  error
	pages      [][]medline.Article
	pageErr    error
	fetchCalls []int
}

func (f *fakeBackend) SearchWithHistory(ctx context.Context, query string, batchSize int, sort string) ([]string, int, Session, error) {
	return f.pmids, f.total, f.session, f.searchErr
}

func (f *fakeBackend) FetchFromHistory(ctx context.Context, session Session, retstart, retmax int) ([]medline.Article, error) {
	f.fetchCalls = append(f.fetchCalls, retstart)
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	idx := retstart / retmax
	if idx >= len(f.pages) {
		return nil, nil
	}
	return f.pages[idx], nil
}

func articlesOfLen(n int, startPmid int) []medline.Article {
	out := make([]medline.Article, n)
	for i := 0; i < n; i++ {
		out[i] = medline.Article{Pmid: itoa(startPmid + i)}
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestStreamPagesThroughHistorySession(t *testing.T) {
	backend := &fakeBackend{
		pmids:   make([]string, 100),
		total:   250,
		session: Session{WebEnv: "W1", QueryKey: "1"},
		pages: [][]medline.Article{
			articlesOfLen(100, 0),
			articlesOfLen(100, 100),
			articlesOfLen(50, 200),
		},
	}

	ch, err := Stream(context.Background(), backend, "cancer biomarker", 100, "")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	articles, err := Collect(ch)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(articles) != 250 {
		t.Fatalf("got %d articles, want 250", len(articles))
	}
	for i, a := range articles {
		if a.Pmid != itoa(i) {
			t.Fatalf("article %d has pmid %q, want %q (order not preserved)", i, a.Pmid, itoa(i))
		}
	}
	if len(backend.fetchCalls) != 3 {
		t.Fatalf("expected 3 fetch calls, got %d: %v", len(backend.fetchCalls), backend.fetchCalls)
	}
}

func TestStreamEmptyResultTerminatesWithNoItems(t *testing.T) {
	backend := &fakeBackend{pmids: nil, total: 0}
	ch, err := Stream(context.Background(), backend, "nothing matches this", 100, "")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	articles, err := Collect(ch)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected no articles, got %d", len(articles))
	}
}

func TestStreamMissingWebEnvFails(t *testing.T) {
	backend := &fakeBackend{pmids: []string{"1", "2"}, total: 2}
	_, err := Stream(context.Background(), backend, "q", 100, "")
	if _, ok := err.(*pmerror.WebEnvNotAvailable); !ok {
		t.Fatalf("expected WebEnvNotAvailable, got %v", err)
	}
}

func TestStreamPropagatesFetchError(t *testing.T) {
	backend := &fakeBackend{
		pmids:   []string{"1"},
		total:   1,
		session: Session{WebEnv: "W1", QueryKey: "1"},
		pageErr: &pmerror.HistorySessionError{Message: "expired"},
	}
	ch, err := Stream(context.Background(), backend, "q", 100, "")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	_, err = Collect(ch)
	if _, ok := err.(*pmerror.HistorySessionError); !ok {
		t.Fatalf("expected HistorySessionError, got %v", err)
	}
}

func TestStreamStopsOnEmptyPageDefensively(t *testing.T) {
	backend := &fakeBackend{
		pmids:   []string{"1"},
		total:   500,
		session: Session{WebEnv: "W1", QueryKey: "1"},
		pages: [][]medline.Article{
			articlesOfLen(100, 0),
		},
	}
	ch, err := Stream(context.Background(), backend, "q", 100, "")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	articles, err := Collect(ch)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(articles) != 100 {
		t.Fatalf("got %d articles, want 100 (server miscount should stop the stream)", len(articles))
	}
}

func TestStreamCancellationStopsFetching(t *testing.T) {
	backend := &fakeBackend{
		pmids:   []string{"1"},
		total:   1000,
		session: Session{WebEnv: "W1", QueryKey: "1"},
		pages: [][]medline.Article{
			articlesOfLen(100, 0),
			articlesOfLen(100, 100),
			articlesOfLen(100, 200),
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Stream(ctx, backend, "q", 100, "")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	first := <-ch
	if first.Err != nil {
		t.Fatalf("unexpected error: %v", first.Err)
	}
	cancel()
	for range ch {
		// drain until the goroutine observes cancellation and closes the channel
	}
}
