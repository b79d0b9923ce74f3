package pmc

import (
	"crypto/sha1"
	"encoding/hex"
	"path"
	"strconv"
	"strings"

	"pubmedkit/internal/xmlutil"
)

// Parse extracts an Article from a JATS <article> document.
func Parse(doc string) (*Article, error) {
	a := &Article{}

	title, ok := xmlutil.TagText(doc, "article-title")
	if ok {
		a.Title = xmlutil.StripTags(title)
	}
	if a.Title == "" {
		a.Title = "Unknown Title"
	}

	a.Journal = parseJournal(doc)
	a.PubDate = parsePubDate(doc)
	a.Doi = firstArticleID(doc, "doi")
	a.Pmid = firstArticleID(doc, "pmid")
	a.Pmcid = firstArticleID(doc, "pmc")
	a.ArticleType = articleType(doc)
	a.Keywords = parseKeywords(doc)
	a.Funding = parseFunding(doc)
	a.ConflictOfInterest = parseConflictOfInterest(doc)
	if ack, ok := xmlutil.TagText(doc, "ack"); ok {
		a.Acknowledgments = xmlutil.StripTags(ack)
	}
	a.DataAvailability = parseDataAvailability(doc)
	a.Authors = parseAuthors(doc)
	a.Sections = parseTopLevelSections(doc)
	a.References = parseReferences(doc)
	a.SupplementaryMaterials = parseSupplementaryMaterials(doc)

	return a, nil
}

func parseJournal(doc string) JournalInfo {
	var j JournalInfo
	if v, ok := xmlutil.TagText(doc, "journal-title"); ok {
		j.Title = xmlutil.StripTags(v)
	}
	for _, block := range xmlutil.AllTagBlocks(doc, "journal-id") {
		if t, _ := xmlutil.Attr(block, "journal-id-type"); t == "iso-abbrev" {
			if v, ok := xmlutil.TagText(block, "journal-id"); ok {
				j.Abbreviation = xmlutil.StripTags(v)
			} else {
				j.Abbreviation = xmlutil.StripTags(block)
			}
		}
	}
	for _, block := range xmlutil.AllTagBlocks(doc, "issn") {
		pubType, _ := xmlutil.Attr(block, "pub-type")
		val := xmlutil.StripTags(block)
		switch pubType {
		case "epub":
			j.EIssn = val
		case "ppub":
			j.PIssn = val
		}
	}
	if v, ok := xmlutil.TagText(doc, "publisher-name"); ok {
		j.Publisher = xmlutil.StripTags(v)
	}
	if v, ok := xmlutil.TagText(doc, "volume"); ok {
		j.Volume = xmlutil.StripTags(v)
	}
	if v, ok := xmlutil.TagText(doc, "issue"); ok {
		j.Issue = xmlutil.StripTags(v)
	}
	return j
}

func parsePubDate(doc string) string {
	// Scope to the first <pub-date> block when present; <year>/<month>/<day>
	// also occur inside references and permission blocks.
	scope := doc
	if blocks := xmlutil.AllTagBlocks(doc, "pub-date"); len(blocks) > 0 {
		scope = blocks[0]
	}
	year, hasYear := xmlutil.TagText(scope, "year")
	month, hasMonth := xmlutil.TagText(scope, "month")
	day, hasDay := xmlutil.TagText(scope, "day")
	year, month, day = xmlutil.StripTags(year), xmlutil.StripTags(month), xmlutil.StripTags(day)
	if !hasYear || year == "" {
		return "Unknown Date"
	}
	switch {
	case hasDay && day != "" && hasMonth && month != "":
		return pad2(year, false) + "-" + pad2(month, true) + "-" + pad2(day, true)
	case hasMonth && month != "":
		return pad2(year, false) + "-" + pad2(month, true)
	default:
		return year
	}
}

func pad2(s string, numeric bool) string {
	if !numeric {
		return s
	}
	if n, err := strconv.Atoi(s); err == nil && n < 10 && len(s) == 1 {
		return "0" + s
	}
	return s
}

func firstArticleID(doc, idType string) string {
	for _, block := range xmlutil.AllTagBlocks(doc, "article-id") {
		if t, _ := xmlutil.Attr(block, "pub-id-type"); t == idType {
			return xmlutil.StripTags(block)
		}
	}
	return ""
}

func articleType(doc string) string {
	articleBlocks := xmlutil.AllTagBlocks(doc, "article")
	if len(articleBlocks) > 0 {
		if t, ok := xmlutil.Attr(articleBlocks[0], "article-type"); ok && t != "" {
			return t
		}
	}
	if v, ok := xmlutil.TagText(doc, "subject"); ok {
		return xmlutil.StripTags(v)
	}
	return ""
}

func parseKeywords(doc string) []string {
	var kws []string
	for _, group := range xmlutil.AllTagBlocks(doc, "kwd-group") {
		for _, kwd := range xmlutil.AllTagBlocks(group, "kwd") {
			if v := xmlutil.StripTags(kwd); v != "" {
				kws = append(kws, v)
			}
		}
	}
	return kws
}

func parseFunding(doc string) []FundingInfo {
	var funding []FundingInfo
	for _, group := range xmlutil.AllTagBlocks(doc, "award-group") {
		f := FundingInfo{}
		if v, ok := xmlutil.TagText(group, "funding-source"); ok {
			f.Source = xmlutil.StripTags(v)
		}
		if v, ok := xmlutil.TagText(group, "award-id"); ok {
			f.AwardId = xmlutil.StripTags(v)
		}
		funding = append(funding, f)
	}
	if stmt, ok := xmlutil.TagText(doc, "funding-statement"); ok {
		text := xmlutil.StripTags(stmt)
		if text != "" {
			if len(funding) > 0 {
				funding[0].Statement = text
			} else {
				funding = append(funding, FundingInfo{Source: "General Funding", Statement: text})
			}
		}
	}
	return funding
}

func parseConflictOfInterest(doc string) string {
	for _, block := range xmlutil.AllTagBlocks(doc, "fn") {
		if t, _ := xmlutil.Attr(block, "fn-type"); t == "COI-statement" || t == "conflict" {
			return xmlutil.StripTags(block)
		}
	}
	if notes, ok := xmlutil.TagText(doc, "author-notes"); ok {
		for _, block := range xmlutil.AllTagBlocks(notes, "fn") {
			text := xmlutil.StripTags(block)
			lower := strings.ToLower(text)
			if strings.Contains(lower, "conflict") || strings.Contains(lower, "competing") {
				return text
			}
		}
	}
	return ""
}

func parseDataAvailability(doc string) string {
	for _, block := range xmlutil.AllTagBlocks(doc, "sec") {
		if t, _ := xmlutil.Attr(block, "sec-type"); t == "data-availability" {
			return xmlutil.StripTags(block)
		}
	}
	for _, block := range xmlutil.AllTagBlocks(doc, "supplementary-material") {
		text := xmlutil.StripTags(block)
		if strings.Contains(strings.ToLower(text), "data") {
			return text
		}
	}
	return ""
}

func parseAuthors(doc string) []Author {
	var authors []Author
	for _, group := range xmlutil.AllTagBlocks(doc, "contrib-group") {
		for _, block := range xmlutil.AllTagBlocks(group, "contrib") {
			a := Author{}
			if v, ok := xmlutil.TagText(block, "surname"); ok {
				a.Surname = xmlutil.StripTags(v)
			}
			if v, ok := xmlutil.TagText(block, "given-names"); ok {
				v = xmlutil.StripTags(v)
				if v != "" {
					a.GivenNames = v
				}
			}
			a.FullName = strings.TrimSpace(a.GivenNames + " " + a.Surname)
			if idx := strings.Index(block, "orcid.org/"); idx != -1 {
				rest := block[idx+len("orcid.org/"):]
				end := strings.IndexAny(rest, "\"'<")
				if end != -1 {
					a.Orcid = rest[:end]
				}
			}
			if v, ok := xmlutil.TagText(block, "email"); ok {
				a.Email = xmlutil.StripTags(v)
			}
			if corresp, _ := xmlutil.Attr(block, "corresp"); corresp == "yes" {
				a.Corresponding = true
			}
			for _, role := range xmlutil.AllTagBlocks(block, "role") {
				if v := xmlutil.StripTags(role); v != "" {
					a.Roles = append(a.Roles, v)
				}
			}
			authors = append(authors, a)
		}
	}
	return authors
}

func parseTopLevelSections(doc string) []Section {
	var sections []Section

	if abs, ok := xmlutil.TagText(doc, "abstract"); ok {
		text := xmlutil.StripTags(abs)
		if text != "" {
			sections = append(sections, Section{SectionType: "abstract", Title: "Abstract", Text: text})
		}
	}

	bodyText, hasBody := xmlutil.TagText(doc, "body")
	if !hasBody {
		return sections
	}

	topSecs := xmlutil.TagDepthBlocks(bodyText, "sec")
	if len(topSecs) == 0 {
		figCounter := &counter{}
		tableCounter := &counter{}
		var ps []string
		for _, p := range xmlutil.AllTagBlocks(bodyText, "p") {
			if t := xmlutil.StripTags(p); t != "" {
				ps = append(ps, t)
			}
		}
		synth := Section{
			SectionType: "body",
			Title:       "Main Content",
			Text:        strings.Join(ps, "\n"),
			Figures:     parseFigures(bodyText, figCounter),
			Tables:      parseTables(bodyText, tableCounter),
		}
		if synth.Text != "" || len(synth.Figures) > 0 || len(synth.Tables) > 0 {
			sections = append(sections, synth)
		}
		return sections
	}

	for _, block := range topSecs {
		if sec, ok := parseSection(block); ok {
			sections = append(sections, sec)
		}
	}
	return sections
}

type counter struct{ n int }

func (c *counter) next() int {
	c.n++
	return c.n
}

// parseSection parses one <sec ...>...</sec> block (including its tags),
// recursively descending into nested <sec> blocks.
func parseSection(block string) (Section, bool) {
	gt := strings.IndexByte(block, '>')
	if gt == -1 {
		return Section{}, false
	}
	openTag := block[:gt+1]
	inner := block[gt+1 : len(block)-len("</sec>")]

	sec := Section{}
	sec.Id, _ = xmlutil.Attr(openTag, "id")
	sec.SectionType, _ = xmlutil.Attr(openTag, "sec-type")

	if t, ok := xmlutil.TagText(inner, "title"); ok {
		sec.Title = xmlutil.StripTags(t)
	}

	// Direct-child <p> text: remove nested <sec> blocks first so their <p>
	// content isn't double-counted at this level.
	directInner := stripNestedBlocks(inner, "sec")
	var paragraphs []string
	for _, p := range xmlutil.AllTagBlocks(directInner, "p") {
		if t := xmlutil.StripTags(p); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}
	sec.Text = strings.Join(paragraphs, "\n")

	figCounter := &counter{}
	tableCounter := &counter{}
	sec.Figures = parseFigures(directInner, figCounter)
	sec.Tables = parseTables(directInner, tableCounter)

	for _, nested := range xmlutil.TagDepthBlocks(inner, "sec") {
		if child, ok := parseSection(nested); ok {
			sec.Subsections = append(sec.Subsections, child)
		}
	}

	if sec.Text == "" && len(sec.Subsections) == 0 && len(sec.Figures) == 0 && len(sec.Tables) == 0 {
		return Section{}, false
	}
	return sec, true
}

// stripNestedBlocks removes every top-level occurrence of tag (matched with
// depth tracking) from doc, used to isolate a section's own direct content
// from its descendants' content before re-scanning for <p>/<fig>/<table-wrap>.
func stripNestedBlocks(doc, tag string) string {
	blocks := xmlutil.TagDepthBlocks(doc, tag)
	out := doc
	for _, b := range blocks {
		out = strings.Replace(out, b, "", 1)
	}
	return out
}

func parseFigures(doc string, c *counter) []Figure {
	var figs []Figure
	for _, block := range xmlutil.AllTagBlocks(doc, "fig") {
		f := Figure{}
		f.Id, _ = xmlutil.Attr(block, "id")
		if f.Id == "" {
			f.Id = "fig_" + strconv.Itoa(c.next())
		}
		if v, ok := xmlutil.TagText(block, "label"); ok {
			f.Label = xmlutil.StripTags(v)
		}
		if v, ok := xmlutil.TagText(block, "caption"); ok {
			f.Caption = xmlutil.StripTags(v)
		}
		if f.Caption == "" {
			f.Caption = "No caption available"
		}
		if v, ok := xmlutil.TagText(block, "alt-text"); ok {
			f.AltText = xmlutil.StripTags(v)
		}
		f.FigType, _ = xmlutil.Attr(block, "fig-type")
		figs = append(figs, f)
	}
	return figs
}

func parseTables(doc string, c *counter) []Table {
	var tables []Table
	for _, block := range xmlutil.AllTagBlocks(doc, "table-wrap") {
		tb := Table{}
		tb.Id, _ = xmlutil.Attr(block, "id")
		if tb.Id == "" {
			tb.Id = "table_" + strconv.Itoa(c.next())
		}
		if v, ok := xmlutil.TagText(block, "label"); ok {
			tb.Label = xmlutil.StripTags(v)
		}
		if v, ok := xmlutil.TagText(block, "caption"); ok {
			tb.Caption = xmlutil.StripTags(v)
		}
		for _, foot := range xmlutil.AllTagBlocks(block, "table-wrap-foot") {
			if v := xmlutil.StripTags(foot); v != "" {
				tb.Footnotes = append(tb.Footnotes, v)
			}
		}
		tables = append(tables, tb)
	}
	return tables
}

func parseReferences(doc string) []Reference {
	var refs []Reference
	refList, ok := xmlutil.TagText(doc, "ref-list")
	if !ok {
		return nil
	}
	for _, block := range xmlutil.AllTagBlocks(refList, "ref") {
		r := Reference{}
		r.Id, _ = xmlutil.Attr(block, "id")
		if v, ok := xmlutil.TagText(block, "article-title"); ok {
			r.Title = xmlutil.StripTags(v)
		}
		if v, ok := xmlutil.TagText(block, "source"); ok {
			r.Journal = xmlutil.StripTags(v)
		}
		if v, ok := xmlutil.TagText(block, "year"); ok {
			r.Year = xmlutil.StripTags(v)
		}
		if v, ok := xmlutil.TagText(block, "volume"); ok {
			r.Volume = xmlutil.StripTags(v)
		}
		if v, ok := xmlutil.TagText(block, "issue"); ok {
			r.Issue = xmlutil.StripTags(v)
		}
		fpage, hasFpage := xmlutil.TagText(block, "fpage")
		lpage, hasLpage := xmlutil.TagText(block, "lpage")
		fpage, lpage = xmlutil.StripTags(fpage), xmlutil.StripTags(lpage)
		switch {
		case hasFpage && fpage != "" && hasLpage && lpage != "":
			r.Pages = fpage + "-" + lpage
		case hasFpage && fpage != "":
			r.Pages = fpage
		}
		for _, idBlock := range xmlutil.AllTagBlocks(block, "pub-id") {
			t, _ := xmlutil.Attr(idBlock, "pub-id-type")
			switch t {
			case "doi":
				r.Doi = xmlutil.StripTags(idBlock)
			case "pmid":
				r.Pmid = xmlutil.StripTags(idBlock)
			}
		}
		for _, nameBlock := range xmlutil.AllTagBlocks(block, "name") {
			ra := ReferenceAuthor{}
			if v, ok := xmlutil.TagText(nameBlock, "surname"); ok {
				ra.Surname = xmlutil.StripTags(v)
			}
			if v, ok := xmlutil.TagText(nameBlock, "given-names"); ok {
				ra.GivenNames = xmlutil.StripTags(v)
			}
			r.Authors = append(r.Authors, ra)
		}
		for _, eg := range xmlutil.AllTagBlocks(block, "element-citation") {
			if t, _ := xmlutil.Attr(eg, "publication-type"); t != "" {
				r.RefType = t
			}
		}
		refs = append(refs, r)
	}
	return refs
}

func parseSupplementaryMaterials(doc string) []SupplementaryMaterial {
	var mats []SupplementaryMaterial
	for _, block := range xmlutil.AllTagBlocks(doc, "supplementary-material") {
		media, hasMedia := findMedia(block)
		if !hasMedia {
			continue
		}
		href, hasHref := xmlutil.Attr(media, "xlink:href")
		if !hasHref || href == "" {
			continue
		}
		m := SupplementaryMaterial{FileURL: href}
		m.Id, _ = xmlutil.Attr(block, "id")
		if m.Id == "" {
			h := sha1.Sum([]byte(block))
			m.Id = hex.EncodeToString(h[:8])
		}
		m.ContentType, _ = xmlutil.Attr(block, "content-type")
		m.Position, _ = xmlutil.Attr(block, "position")
		if v, ok := xmlutil.TagText(block, "title"); ok {
			m.Title = xmlutil.StripTags(v)
		}
		if v, ok := xmlutil.TagText(block, "caption"); ok {
			m.Description = xmlutil.StripTags(v)
		}
		ext := strings.TrimPrefix(path.Ext(href), ".")
		m.FileType = ext
		mats = append(mats, m)
	}
	return mats
}

func findMedia(block string) (string, bool) {
	medias := xmlutil.AllTagBlocks(block, "media")
	if len(medias) == 0 {
		return "", false
	}
	return medias[0], true
}
