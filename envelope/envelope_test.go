package envelope

import (
	"testing"

	"pubmedkit/pmerror"
)

func TestParseESearch(t *testing.T) {
	body := []byte(`{"esearchresult":{"count":"3","retmax":"3","retstart":"0","idlist":["31978945","33515491","32960547"],"webenv":"W1","querykey":"1"}}`)
	r, err := ParseESearch(body)
	if err != nil {
		t.Fatalf("ParseESearch: %v", err)
	}
	if r.Count != 3 || len(r.IdList) != 3 || r.WebEnv != "W1" {
		t.Fatalf("got %+v", r)
	}
}

func TestParseECitMatchFound(t *testing.T) {
	body := []byte("proc natl acad sci u s a|1991|88|3248|mann bj|Art1|2014248\n")
	matches, err := ParseECitMatch(body)
	if err != nil {
		t.Fatalf("ParseECitMatch: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches", len(matches))
	}
	m := matches[0]
	if m.Pmid != "2014248" || m.Status != Found || m.Journal != "proc natl acad sci u s a" {
		t.Fatalf("got %+v", m)
	}
}

func TestParseECitMatchNotFoundAndAmbiguous(t *testing.T) {
	body := []byte("j1|2000|1|1|a1|k1|\nj2|2001|2|2|a2|k2|AMBIGUOUS\n")
	matches, err := ParseECitMatch(body)
	if err != nil {
		t.Fatalf("ParseECitMatch: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches", len(matches))
	}
	if matches[0].Status != NotFound {
		t.Fatalf("expected NotFound, got %v", matches[0].Status)
	}
	if matches[1].Status != Ambiguous {
		t.Fatalf("expected Ambiguous, got %v", matches[1].Status)
	}
}

func TestParseESpell(t *testing.T) {
	body := []byte(`<eSpellResult><Query>asthma or allergies</Query><CorrectedQuery>asthma or allergies</CorrectedQuery><SpelledQuery><Replaced></Replaced><Replaced>asthma</Replaced><Replaced> OR </Replaced><Replaced>allergies</Replaced></SpelledQuery></eSpellResult>`)
	r, err := ParseESpell(body)
	if err != nil {
		t.Fatalf("ParseESpell: %v", err)
	}
	if !r.HasCorrections {
		t.Fatalf("expected HasCorrections true")
	}
	if len(r.Replacements) != 2 || r.Replacements[0] != "asthma" || r.Replacements[1] != "allergies" {
		t.Fatalf("got %+v", r.Replacements)
	}
}

func TestParseEGQuery(t *testing.T) {
	body := []byte(`<Result><eGQueryResult>
		<ResultItem><DbName>pubmed</DbName><Count>234567</Count></ResultItem>
		<ResultItem><DbName>pmc</DbName><Count>89012</Count></ResultItem>
		<ResultItem><DbName>mesh</DbName><Count>0</Count></ResultItem>
	</eGQueryResult></Result>`)
	items, err := ParseEGQuery(body)
	if err != nil {
		t.Fatalf("ParseEGQuery: %v", err)
	}
	if len(NonZero(items)) != 2 {
		t.Fatalf("expected 2 non-zero entries, got %d", len(NonZero(items)))
	}
	count, ok := CountFor(items, "pubmed")
	if !ok || count != 234567 {
		t.Fatalf("got count=%d ok=%v", count, ok)
	}
}

func TestParseOAResponse(t *testing.T) {
	body := []byte(`<OA><records><record citation="Cell. 2020" license="CC BY"><link format="pdf" href="https://example.com/a.pdf" updated="2020-01-01"/></record></records></OA>`)
	info, err := ParseOAResponse(body)
	if err != nil {
		t.Fatalf("ParseOAResponse: %v", err)
	}
	if info.Citation != "Cell. 2020" || len(info.Links) != 1 || info.Links[0].Href != "https://example.com/a.pdf" {
		t.Fatalf("got %+v", info)
	}
}

func TestParseESpellInBandError(t *testing.T) {
	body := []byte(`<eSpellResult><ERROR>Empty term and query_key - nothing todo</ERROR></eSpellResult>`)
	_, err := ParseESpell(body)
	apiErr, ok := err.(*pmerror.ApiError)
	if !ok {
		t.Fatalf("expected ApiError, got %v", err)
	}
	if apiErr.Status != 200 || apiErr.Message == "" {
		t.Fatalf("got %+v", apiErr)
	}
}
