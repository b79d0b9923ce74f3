package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pubmedkit/config"
	"pubmedkit/history"
	"pubmedkit/pmerror"
)

func historySession() history.Session {
	return history.Session{WebEnv: "W1", QueryKey: "1"}
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.New(config.WithBaseURL(srv.URL), config.WithRateLimit(1000))
	return New(cfg)
}

func medlineArticleXML(pmid string) string {
	return fmt.Sprintf(`<PubmedArticle><MedlineCitation><PMID>%s</PMID><Article><ArticleTitle>Article %s</ArticleTitle><Journal><Title>Test Journal</Title></Journal></Article></MedlineCitation><PubmedData></PubmedData></PubmedArticle>`, pmid, pmid)
}

// SearchAndFetch against a mocked esearch + efetch pair yields three
// Articles in request order.
func TestSearchAndFetchReturnsArticlesInOrder(t *testing.T) {
	pmids := []string{"31978945", "33515491", "32960547"}
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"esearchresult":{"count":"3","retmax":"3","retstart":"0","idlist":["%s","%s","%s"]}}`, pmids[0], pmids[1], pmids[2])
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		var body strings.Builder
		body.WriteString("<PubmedArticleSet>")
		for _, p := range pmids {
			body.WriteString(medlineArticleXML(p))
		}
		body.WriteString("</PubmedArticleSet>")
		w.Write([]byte(body.String()))
	})

	c := testClient(t, mux)
	articles, err := c.SearchAndFetch(context.Background(), "covid-19 treatment", 3, "")
	if err != nil {
		t.Fatalf("SearchAndFetch: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("got %d articles, want 3", len(articles))
	}
	for i, want := range pmids {
		if articles[i].Pmid != want {
			t.Fatalf("article %d has pmid %q, want %q", i, articles[i].Pmid, want)
		}
	}
}

func TestMatchCitationsRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ecitmatch.cgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "proc natl acad sci u s a|1991|88|3248|mann bj|Art1|2014248\n")
	})

	c := testClient(t, mux)
	matches, err := c.MatchCitations(context.Background(), []CitationQuery{
		{Journal: "proc natl acad sci u s a", Year: "1991", Volume: "88", Page: "3248", Author: "mann bj", Key: "Art1"},
	})
	if err != nil {
		t.Fatalf("MatchCitations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.Pmid != "2014248" {
		t.Fatalf("got pmid %q, want 2014248", m.Pmid)
	}
	if m.Status != 0 {
		t.Fatalf("got status %v, want Found", m.Status)
	}
	if m.Journal != "proc natl acad sci u s a" {
		t.Fatalf("got journal %q", m.Journal)
	}
}

// One malformed PMID aborts the whole batch with zero HTTP requests.
func TestFetchArticlesRejectsInvalidPmidBeforeNetworkIO(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	c := testClient(t, mux)
	_, err := c.FetchArticles(context.Background(), []string{"31978945", "invalid", "33515491"})
	if err == nil {
		t.Fatalf("expected error")
	}
	invalid, ok := err.(*pmerror.InvalidPmid)
	if !ok {
		t.Fatalf("got %T, want *pmerror.InvalidPmid", err)
	}
	if invalid.Pmid != "invalid" {
		t.Fatalf("got pmid %q, want %q", invalid.Pmid, "invalid")
	}
	if calls != 0 {
		t.Fatalf("expected zero HTTP requests, got %d", calls)
	}
}

func TestSearchArticlesEmptyQueryMakesNoRequest(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { calls++ })
	c := testClient(t, mux)
	pmids, err := c.SearchArticles(context.Background(), "", 10, "")
	if err != nil {
		t.Fatalf("SearchArticles: %v", err)
	}
	if pmids != nil {
		t.Fatalf("expected nil pmids, got %v", pmids)
	}
	if calls != 0 {
		t.Fatalf("expected zero requests, got %d", calls)
	}
}

func TestSearchArticlesRejectsLimitAboveMax(t *testing.T) {
	c := testClient(t, http.NewServeMux())
	_, err := c.SearchArticles(context.Background(), "x", 10000, "")
	if _, ok := err.(*pmerror.SearchLimitExceeded); !ok {
		t.Fatalf("got %v, want SearchLimitExceeded", err)
	}
}

func TestSearchWithHistoryFailsWithoutWebEnv(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"count":"2","retmax":"2","retstart":"0","idlist":["1","2"]}}`)
	})
	c := testClient(t, mux)
	_, err := c.SearchWithHistory(context.Background(), "q", 10, "")
	if _, ok := err.(*pmerror.WebEnvNotAvailable); !ok {
		t.Fatalf("got %v, want WebEnvNotAvailable", err)
	}
}

func TestFetchFromHistoryReportsErrorTag(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<eFetchResult><ERROR>Unable to obtain query #1</ERROR></eFetchResult>`)
	})
	c := testClient(t, mux)
	_, err := c.FetchFromHistory(context.Background(), historySession(), 0, 100)
	if _, ok := err.(*pmerror.HistorySessionError); !ok {
		t.Fatalf("got %v, want HistorySessionError", err)
	}
}

func TestEPostRejectsEmptyList(t *testing.T) {
	c := testClient(t, http.NewServeMux())
	_, err := c.EPost(context.Background(), nil)
	if _, ok := err.(*pmerror.InvalidQuery); !ok {
		t.Fatalf("got %v, want InvalidQuery", err)
	}
}

func TestGetRelatedArticlesEmptyInput(t *testing.T) {
	c := testClient(t, http.NewServeMux())
	got, err := c.GetRelatedArticles(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetRelatedArticles: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
