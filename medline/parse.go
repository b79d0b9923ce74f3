package medline

import (
	"encoding/xml"
	"fmt"
	"strings"

	"pubmedkit/internal/xmlutil"
	"pubmedkit/pmerror"
)

// rawArticleSet mirrors the PubmedArticleSet schema closely enough for
// encoding/xml to decode it; it is intentionally permissive (most fields are
// plain strings) because the preceding inline-tag strip already guarantees
// well-formedness.
type rawArticleSet struct {
	XMLName xml.Name     `xml:"PubmedArticleSet"`
	Article []rawArticle `xml:"PubmedArticle"`
}

type rawArticle struct {
	MedlineCitation rawMedlineCitation `xml:"MedlineCitation"`
	PubmedData      rawPubmedData      `xml:"PubmedData"`
}

type rawMedlineCitation struct {
	PMID            string         `xml:"PMID"`
	Article         rawArticleBody `xml:"Article"`
	MeshHeadingList struct {
		MeshHeading []rawMeshHeading `xml:"MeshHeading"`
	} `xml:"MeshHeadingList"`
	ChemicalList struct {
		Chemical []rawChemical `xml:"Chemical"`
	} `xml:"ChemicalList"`
	KeywordList struct {
		Keyword []rawKeyword `xml:"Keyword"`
	} `xml:"KeywordList"`
	SupplMeshList struct {
		SupplMeshName []struct {
			UI   string `xml:"UI,attr"`
			Text string `xml:",chardata"`
		} `xml:"SupplMeshName"`
	} `xml:"SupplMeshList"`
}

type rawKeyword struct {
	Text string `xml:",chardata"`
}

type rawArticleBody struct {
	ArticleTitle string `xml:"ArticleTitle"`
	Abstract     struct {
		AbstractText []rawAbstractText `xml:"AbstractText"`
	} `xml:"Abstract"`
	Journal struct {
		Title           string `xml:"Title"`
		ISOAbbreviation string `xml:"ISOAbbreviation"`
		ISSN            []struct {
			Text string `xml:",chardata"`
		} `xml:"ISSN"`
		JournalIssue struct {
			Volume  string `xml:"Volume"`
			Issue   string `xml:"Issue"`
			PubDate struct {
				Year        string `xml:"Year"`
				Month       string `xml:"Month"`
				Day         string `xml:"Day"`
				MedlineDate string `xml:"MedlineDate"`
			} `xml:"PubDate"`
		} `xml:"JournalIssue"`
	} `xml:"Journal"`
	Pagination struct {
		MedlinePgn string `xml:"MedlinePgn"`
	} `xml:"Pagination"`
	Language    []string         `xml:"Language"`
	ELocationID []rawELocationID `xml:"ELocationID"`
	AuthorList  struct {
		Author []rawAuthor `xml:"Author"`
	} `xml:"AuthorList"`
	PublicationTypeList struct {
		PublicationType []string `xml:"PublicationType"`
	} `xml:"PublicationTypeList"`
}

type rawELocationID struct {
	EIdType string `xml:"EIdType,attr"`
	Text    string `xml:",chardata"`
}

type rawAbstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type rawAuthor struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	Initials       string `xml:"Initials"`
	Suffix         string `xml:"Suffix"`
	CollectiveName string `xml:"CollectiveName"`
	Identifier     []struct {
		Source string `xml:"Source,attr"`
		Text   string `xml:",chardata"`
	} `xml:"Identifier"`
	AffiliationInfo []struct {
		Affiliation string `xml:"Affiliation"`
	} `xml:"AffiliationInfo"`
}

type rawMeshHeading struct {
	DescriptorName struct {
		UI         string `xml:"UI,attr"`
		MajorTopic string `xml:"MajorTopicYN,attr"`
		Text       string `xml:",chardata"`
	} `xml:"DescriptorName"`
	QualifierName []struct {
		UI         string `xml:"UI,attr"`
		MajorTopic string `xml:"MajorTopicYN,attr"`
		Text       string `xml:",chardata"`
	} `xml:"QualifierName"`
}

type rawChemical struct {
	RegistryNumber  string `xml:"RegistryNumber"`
	NameOfSubstance struct {
		UI   string `xml:"UI,attr"`
		Text string `xml:",chardata"`
	} `xml:"NameOfSubstance"`
}

type rawPubmedData struct {
	ArticleIdList struct {
		ArticleId []struct {
			IdType string `xml:"IdType,attr"`
			Text   string `xml:",chardata"`
		} `xml:"ArticleId"`
	} `xml:"ArticleIdList"`
}

// cleanText trims, decodes entities, and NFC-normalizes a decoded text
// field.
func cleanText(s string) string {
	return xmlutil.NormalizeUnicode(xmlutil.DecodeEntities(strings.TrimSpace(s)))
}

// ParseArticleSet parses a complete <PubmedArticleSet> document, skipping
// (with the caller supplying a warn callback) any per-article extraction
// failure rather than aborting the whole batch.
func ParseArticleSet(doc string, warn func(pmid string, err error)) ([]Article, error) {
	cleaned := xmlutil.StripInlineTags(doc)
	var raw rawArticleSet
	if err := xmlutil.NewXMLDecoder(strings.NewReader(cleaned)).Decode(&raw); err != nil {
		return nil, &pmerror.XMLError{Message: "decoding PubmedArticleSet", Cause: err}
	}
	articles := make([]Article, 0, len(raw.Article))
	for _, ra := range raw.Article {
		a, err := mapArticle(ra)
		if err != nil {
			if warn != nil {
				warn(ra.MedlineCitation.PMID, err)
			}
			continue
		}
		articles = append(articles, *a)
	}
	return articles, nil
}

// ParseSingleArticle parses a document expected to contain exactly the
// article identified by pmid, even if the batch response carries others.
func ParseSingleArticle(doc, pmid string) (*Article, error) {
	cleaned := xmlutil.StripInlineTags(doc)
	var raw rawArticleSet
	if err := xmlutil.NewXMLDecoder(strings.NewReader(cleaned)).Decode(&raw); err != nil {
		return nil, &pmerror.XMLError{Message: "decoding PubmedArticleSet", Cause: err}
	}
	for _, ra := range raw.Article {
		if ra.MedlineCitation.PMID != pmid {
			continue
		}
		return mapArticle(ra)
	}
	return nil, &pmerror.ArticleNotFound{Pmid: pmid}
}

func mapArticle(ra rawArticle) (*Article, error) {
	title := cleanText(ra.MedlineCitation.Article.ArticleTitle)
	if title == "" {
		return nil, &pmerror.ArticleNotFound{Pmid: ra.MedlineCitation.PMID}
	}

	body := ra.MedlineCitation.Article
	a := &Article{
		Pmid:                ra.MedlineCitation.PMID,
		Title:               title,
		Journal:             strings.TrimSpace(body.Journal.Title),
		JournalAbbreviation: strings.TrimSpace(body.Journal.ISOAbbreviation),
		Volume:              strings.TrimSpace(body.Journal.JournalIssue.Volume),
		Issue:               strings.TrimSpace(body.Journal.JournalIssue.Issue),
		Pages:               strings.TrimSpace(body.Pagination.MedlinePgn),
	}
	if len(body.Journal.ISSN) > 0 {
		a.Issn = strings.TrimSpace(body.Journal.ISSN[0].Text)
	}
	if len(body.Language) > 0 {
		a.Language = strings.TrimSpace(body.Language[0])
	}

	a.PubDate = formatPubDate(body.Journal.JournalIssue.PubDate.MedlineDate, body.Journal.JournalIssue.PubDate.Year, body.Journal.JournalIssue.PubDate.Month, body.Journal.JournalIssue.PubDate.Day)

	for _, e := range body.ELocationID {
		if strings.EqualFold(e.EIdType, "doi") {
			a.Doi = strings.TrimSpace(e.Text)
			break
		}
	}

	for _, at := range body.PublicationTypeList.PublicationType {
		if t := cleanText(at); t != "" {
			a.ArticleTypes = append(a.ArticleTypes, t)
		}
	}

	var absParts []string
	var structured []AbstractSection
	hasLabel := false
	for _, at := range body.Abstract.AbstractText {
		text := cleanText(at.Text)
		absParts = append(absParts, text)
		structured = append(structured, AbstractSection{Label: at.Label, Text: text})
		if at.Label != "" {
			hasLabel = true
		}
	}
	a.AbstractText = strings.Join(absParts, " ")
	if hasLabel {
		a.StructuredAbstract = structured
	}

	for _, ra2 := range body.AuthorList.Author {
		if author, ok := mapAuthor(ra2); ok {
			a.Authors = append(a.Authors, author)
		}
	}
	a.AuthorCount = len(a.Authors)

	for _, mh := range ra.MedlineCitation.MeshHeadingList.MeshHeading {
		a.MeshHeadings = append(a.MeshHeadings, mapMeshHeading(mh))
	}

	for _, sm := range ra.MedlineCitation.SupplMeshList.SupplMeshName {
		if text := cleanText(sm.Text); text != "" {
			a.SupplementalConcepts = append(a.SupplementalConcepts, text)
		}
	}

	for _, c := range ra.MedlineCitation.ChemicalList.Chemical {
		chem := Chemical{
			Name: cleanText(c.NameOfSubstance.Text),
			UI:   c.NameOfSubstance.UI,
		}
		reg := strings.TrimSpace(c.RegistryNumber)
		if reg != "" && reg != "0" {
			chem.RegistryNumber = reg
		}
		a.ChemicalList = append(a.ChemicalList, chem)
	}

	for _, k := range ra.MedlineCitation.KeywordList.Keyword {
		if text := cleanText(k.Text); text != "" {
			a.Keywords = append(a.Keywords, text)
		}
	}

	for _, id := range ra.PubmedData.ArticleIdList.ArticleId {
		if strings.EqualFold(id.IdType, "pmc") {
			a.PmcId = strings.TrimSpace(id.Text)
		}
		if a.Doi == "" && strings.EqualFold(id.IdType, "doi") {
			a.Doi = strings.TrimSpace(id.Text)
		}
	}

	return a, nil
}

// formatPubDate prefers MedlineDate verbatim, then joins Year[ Month[ Day]].
// MedlineDate content is free-form ("2020 Winter", "2020 Mar-Apr"); no
// parsing of its internal structure is attempted.
func formatPubDate(medlineDate, year, month, day string) string {
	if medlineDate != "" {
		return medlineDate
	}
	parts := []string{}
	if year != "" {
		parts = append(parts, year)
	}
	if month != "" {
		parts = append(parts, month)
	}
	if day != "" {
		parts = append(parts, day)
	}
	return strings.Join(parts, " ")
}

func mapAuthor(ra rawAuthor) (Author, bool) {
	if ra.CollectiveName != "" {
		name := cleanText(ra.CollectiveName)
		return Author{CollectiveName: name, FullName: name}, true
	}

	fullName := computeFullName(ra.ForeName, ra.LastName, ra.Initials)
	if fullName == "" || fullName == "Unknown Author" {
		return Author{}, false
	}

	a := Author{
		LastName: strings.TrimSpace(ra.LastName),
		ForeName: strings.TrimSpace(ra.ForeName),
		Initials: strings.TrimSpace(ra.Initials),
		Suffix:   strings.TrimSpace(ra.Suffix),
		FullName: fullName,
	}
	for _, ident := range ra.Identifier {
		if strings.EqualFold(ident.Source, "ORCID") {
			a.Orcid = strings.TrimSpace(ident.Text)
		}
	}
	for _, ai := range ra.AffiliationInfo {
		a.Affiliations = append(a.Affiliations, parseAffiliation(ai.Affiliation))
	}
	return a, true
}

func computeFullName(fore, last, initials string) string {
	fore = strings.TrimSpace(fore)
	last = strings.TrimSpace(last)
	initials = strings.TrimSpace(initials)
	switch {
	case fore != "" && last != "":
		return fore + " " + last
	case initials != "" && last != "":
		return initials + " " + last
	case last != "":
		return last
	case fore != "":
		return fore
	default:
		return ""
	}
}

func parseAffiliation(raw string) Affiliation {
	text := cleanText(raw)
	aff := Affiliation{Institution: text}
	aff.Email = extractEmail(text)
	aff.Country = extractCountry(text)
	return aff
}

func extractEmail(text string) string {
	for _, tok := range strings.Fields(text) {
		if strings.Contains(tok, "@") && strings.Contains(tok, ".") {
			trimmed := strings.TrimRight(tok, ".,;)")
			if len(trimmed) > 5 {
				return trimmed
			}
		}
	}
	return ""
}

func extractCountry(text string) string {
	lower := strings.ToLower(text)
	for _, c := range countryList {
		lc := strings.ToLower(c)
		if strings.HasSuffix(lower, lc) || strings.Contains(lower, ", "+lc) {
			return c
		}
	}
	return ""
}

func mapMeshHeading(mh rawMeshHeading) MeshTerm {
	t := MeshTerm{
		DescriptorName: cleanText(mh.DescriptorName.Text),
		DescriptorUI:   mh.DescriptorName.UI,
		MajorTopic:     mh.DescriptorName.MajorTopic == "Y",
	}
	for _, q := range mh.QualifierName {
		t.Qualifiers = append(t.Qualifiers, MeshQualifier{
			QualifierName: cleanText(q.Text),
			QualifierUI:   q.UI,
			MajorTopic:    q.MajorTopic == "Y",
		})
	}
	return t
}

// FormatArticleSummary renders a terse single-line description, used by
// callers building log lines without reaching into every field.
func FormatArticleSummary(a Article) string {
	return fmt.Sprintf("%s: %s (%s)", a.Pmid, a.Title, a.Journal)
}
