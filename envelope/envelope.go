// Package envelope decodes the JSON and XML response envelopes of the
// non-EFetch E-utilities endpoints: ESearch, ESummary, ELink, EInfo, EPost,
// EGQuery, ESpell, ECitMatch, and the PMC OA subset service.
package envelope

import (
	"encoding/json"
	"encoding/xml"
	"strconv"
	"strings"

	"pubmedkit/pmerror"
)

// ESearchResult is the decoded esearchresult object from ESearch JSON.
type ESearchResult struct {
	Count        int
	RetMax       int
	RetStart     int
	IdList       []string
	WebEnv       string
	QueryKey     string
	Translation  string
	ErrorMessage string
}

type esearchJSON struct {
	ESearchResult struct {
		Count            string   `json:"count"`
		RetMax           string   `json:"retmax"`
		RetStart         string   `json:"retstart"`
		IdList           []string `json:"idlist"`
		WebEnv           string   `json:"webenv"`
		QueryKey         string   `json:"querykey"`
		QueryTranslation string   `json:"querytranslation"`
		ErrorList        *struct {
			PhraseNotFound []string `json:"PhraseNotFound"`
		} `json:"errorlist"`
		Error string `json:"ERROR"`
	} `json:"esearchresult"`
}

// ParseESearch decodes an ESearch JSON response body.
func ParseESearch(body []byte) (*ESearchResult, error) {
	var raw esearchJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &pmerror.JSONError{Message: "decoding esearch response", Cause: err}
	}
	r := raw.ESearchResult
	if r.Error != "" {
		return nil, &pmerror.ApiError{Status: 200, Message: r.Error}
	}
	count, _ := strconv.Atoi(r.Count)
	retmax, _ := strconv.Atoi(r.RetMax)
	retstart, _ := strconv.Atoi(r.RetStart)
	return &ESearchResult{
		Count:       count,
		RetMax:      retmax,
		RetStart:    retstart,
		IdList:      r.IdList,
		WebEnv:      r.WebEnv,
		QueryKey:    r.QueryKey,
		Translation: r.QueryTranslation,
	}, nil
}

// ESummaryDocument is one document summary record from an ESummary response.
type ESummaryDocument struct {
	UID    string
	Fields map[string]any
}

type esummaryJSON struct {
	Result map[string]json.RawMessage `json:"result"`
}

// ParseESummary decodes an ESummary JSON response into one ESummaryDocument
// per requested UID, skipping the "uids" index entry, UIDs the result omits,
// and per-UID entries that fail to decode or carry an "error" field.
func ParseESummary(body []byte) ([]ESummaryDocument, error) {
	var raw esummaryJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &pmerror.JSONError{Message: "decoding esummary response", Cause: err}
	}
	uidsRaw, ok := raw.Result["uids"]
	if !ok {
		return nil, &pmerror.JSONError{Message: "esummary response missing uids index"}
	}
	var uids []string
	if err := json.Unmarshal(uidsRaw, &uids); err != nil {
		return nil, &pmerror.JSONError{Message: "decoding esummary uids index", Cause: err}
	}
	docs := make([]ESummaryDocument, 0, len(uids))
	for _, uid := range uids {
		entryRaw, ok := raw.Result[uid]
		if !ok {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(entryRaw, &fields); err != nil {
			continue
		}
		if _, isErr := fields["error"]; isErr {
			continue
		}
		docs = append(docs, ESummaryDocument{UID: uid, Fields: fields})
	}
	return docs, nil
}

// ELinkSet is one linkset's worth of destination UIDs for a given linkname.
type ELinkSet struct {
	DBFrom   string
	LinkName string
	Ids      []string
}

type elinkJSON struct {
	LinkSets []struct {
		DbFrom     string `json:"dbfrom"`
		LinkSetDbs []struct {
			DbTo     string `json:"dbto"`
			LinkName string `json:"linkname"`
			Links    []struct {
				Id string `json:"id"`
			} `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

// ParseELink decodes an ELink JSON response, flattening every linksetdb into
// an ELinkSet.
func ParseELink(body []byte) ([]ELinkSet, error) {
	var raw elinkJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &pmerror.JSONError{Message: "decoding elink response", Cause: err}
	}
	var sets []ELinkSet
	for _, ls := range raw.LinkSets {
		for _, db := range ls.LinkSetDbs {
			ids := make([]string, 0, len(db.Links))
			for _, l := range db.Links {
				ids = append(ids, l.Id)
			}
			sets = append(sets, ELinkSet{DBFrom: ls.DbFrom, LinkName: db.LinkName, Ids: ids})
		}
	}
	return sets, nil
}

// EInfoResult describes either the full database list or one database's
// field/link descriptors, depending on which was requested.
type EInfoResult struct {
	DbList      []string
	Description string
	FieldList   []string
}

type einfoJSON struct {
	EInfoResult struct {
		DbList []string `json:"dblist"`
		DbInfo *struct {
			Description string `json:"description"`
			FieldList   []struct {
				Name string `json:"name"`
			} `json:"fieldlist"`
		} `json:"dbinfo"`
	} `json:"einforesult"`
}

// ParseEInfo decodes an EInfo JSON response.
func ParseEInfo(body []byte) (*EInfoResult, error) {
	var raw einfoJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &pmerror.JSONError{Message: "decoding einfo response", Cause: err}
	}
	res := &EInfoResult{DbList: raw.EInfoResult.DbList}
	if raw.EInfoResult.DbInfo != nil {
		res.Description = raw.EInfoResult.DbInfo.Description
		for _, f := range raw.EInfoResult.DbInfo.FieldList {
			res.FieldList = append(res.FieldList, f.Name)
		}
	}
	return res, nil
}

// EPostResult carries the WebEnv/query_key session created by EPost.
type EPostResult struct {
	WebEnv   string
	QueryKey string
}

type epostJSON struct {
	WebEnv   string `json:"webenv"`
	QueryKey string `json:"querykey"`
	Error    string `json:"ERROR"`
}

// ParseEPost decodes an EPost JSON response.
func ParseEPost(body []byte) (*EPostResult, error) {
	var raw epostJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &pmerror.JSONError{Message: "decoding epost response", Cause: err}
	}
	if raw.Error != "" {
		return nil, &pmerror.ApiError{Status: 200, Message: raw.Error}
	}
	return &EPostResult{WebEnv: raw.WebEnv, QueryKey: raw.QueryKey}, nil
}

// EGQueryItem is one database's hit count from EGQuery.
type EGQueryItem struct {
	DbName string
	Count  int
}

type egqueryXML struct {
	XMLName     xml.Name `xml:"Result"`
	Term        string   `xml:"Term"`
	ResultItems []struct {
		DbName string `xml:"DbName"`
		Count  string `xml:"Count"`
		Status string `xml:"Status"`
	} `xml:"eGQueryResult>ResultItem"`
}

// ParseEGQuery decodes an EGQuery XML response.
func ParseEGQuery(body []byte) ([]EGQueryItem, error) {
	var raw egqueryXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, &pmerror.XMLError{Message: "decoding egquery response", Cause: err}
	}
	items := make([]EGQueryItem, 0, len(raw.ResultItems))
	for _, it := range raw.ResultItems {
		n, _ := strconv.Atoi(it.Count)
		items = append(items, EGQueryItem{DbName: it.DbName, Count: n})
	}
	return items, nil
}

// NonZero filters items to those with a positive count.
func NonZero(items []EGQueryItem) []EGQueryItem {
	out := make([]EGQueryItem, 0, len(items))
	for _, it := range items {
		if it.Count > 0 {
			out = append(out, it)
		}
	}
	return out
}

// CountFor returns the count for dbName, if present.
func CountFor(items []EGQueryItem, dbName string) (int, bool) {
	for _, it := range items {
		if it.DbName == dbName {
			return it.Count, true
		}
	}
	return 0, false
}

// ESpellResult is a decoded spelling-suggestion record.
type ESpellResult struct {
	Query          string
	CorrectedQuery string
	Replacements   []string
	HasCorrections bool
}

type espellXML struct {
	XMLName        xml.Name `xml:"eSpellResult"`
	Query          string   `xml:"Query"`
	CorrectedQuery string   `xml:"CorrectedQuery"`
	SpelledQuery   []string `xml:"SpelledQuery>Replaced"`
	ErrorMessage   string   `xml:"ERROR"`
}

// ParseESpell decodes an ESpell XML response. The SpelledQuery children
// that are literal word replacements (not separators like " OR ") become
// Replacements.
func ParseESpell(body []byte) (*ESpellResult, error) {
	var raw espellXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, &pmerror.XMLError{Message: "decoding espell response", Cause: err}
	}
	if raw.ErrorMessage != "" {
		return nil, &pmerror.ApiError{Status: 200, Message: raw.ErrorMessage}
	}
	var replacements []string
	for _, s := range raw.SpelledQuery {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" || strings.EqualFold(trimmed, "OR") || strings.EqualFold(trimmed, "AND") || strings.EqualFold(trimmed, "NOT") {
			continue
		}
		replacements = append(replacements, trimmed)
	}
	return &ESpellResult{
		Query:          raw.Query,
		CorrectedQuery: raw.CorrectedQuery,
		Replacements:   replacements,
		HasCorrections: raw.CorrectedQuery != "",
	}, nil
}

// CitationMatchStatus classifies an ECitMatch result line.
type CitationMatchStatus int

const (
	Found CitationMatchStatus = iota
	NotFound
	Ambiguous
)

// CitationMatch is one decoded ECitMatch result line.
type CitationMatch struct {
	Journal string
	Year    string
	Volume  string
	Page    string
	Author  string
	Key     string
	Pmid    string
	Status  CitationMatchStatus
}

// ParseECitMatch splits a pipe-delimited ECitMatch body into CitationMatch
// records, one per non-empty line. Each line carries 7 fields: journal,
// year, volume, page, author, key, and the match result (a PMID, the
// literal AMBIGUOUS, or empty for not-found).
func ParseECitMatch(body []byte) ([]CitationMatch, error) {
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	matches := make([]CitationMatch, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 7 {
			continue
		}
		m := CitationMatch{
			Journal: fields[0],
			Year:    fields[1],
			Volume:  fields[2],
			Page:    fields[3],
			Author:  fields[4],
			Key:     fields[5],
		}
		result := fields[6]
		switch {
		case result == "":
			m.Status = NotFound
		case strings.EqualFold(result, "AMBIGUOUS"):
			m.Status = Ambiguous
		default:
			m.Status = Found
			m.Pmid = result
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// OAInfo is a decoded PMC OA subset record.
type OAInfo struct {
	Citation  string
	License   string
	Retracted bool
	Links     []OALink
}

// OALink is a single download link within an OA record.
type OALink struct {
	Format  string
	Href    string
	Updated string
}

type oaXML struct {
	XMLName xml.Name `xml:"OA"`
	Error   *struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
	Records []struct {
		Citation  string `xml:"citation,attr"`
		License   string `xml:"license,attr"`
		Retracted string `xml:"retracted,attr"`
		Links     []struct {
			Format  string `xml:"format,attr"`
			Href    string `xml:"href,attr"`
			Updated string `xml:"updated,attr"`
		} `xml:"link"`
	} `xml:"records>record"`
}

// ParseOAResponse decodes the PMC OA subset service's XML response.
func ParseOAResponse(body []byte) (*OAInfo, error) {
	var raw oaXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, &pmerror.XMLError{Message: "decoding oa response", Cause: err}
	}
	if raw.Error != nil {
		return nil, &pmerror.PmcNotAvailable{}
	}
	if len(raw.Records) == 0 {
		return nil, &pmerror.PmcNotAvailable{}
	}
	rec := raw.Records[0]
	links := make([]OALink, 0, len(rec.Links))
	for _, l := range rec.Links {
		links = append(links, OALink{Format: l.Format, Href: l.Href, Updated: l.Updated})
	}
	return &OAInfo{
		Citation:  rec.Citation,
		License:   rec.License,
		Retracted: strings.EqualFold(rec.Retracted, "yes") || rec.Retracted == "1",
		Links:     links,
	}, nil
}
