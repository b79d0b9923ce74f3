package pmc

import "testing"

const sampleArticle = `<?xml version="1.0"?>
<article article-type="research-article">
<front>
<article-meta>
<article-id pub-id-type="doi">10.1234/abc</article-id>
<article-id pub-id-type="pmid">32960547</article-id>
<article-id pub-id-type="pmc">7906746</article-id>
<title-group><article-title>A study of CO<sup>2</sup> levels</article-title></title-group>
<contrib-group>
<contrib contrib-type="author" corresp="yes">
<name><surname>Doe</surname><given-names>John</given-names></name>
<email>john.doe@example.org</email>
<role>Conceptualization</role>
</contrib>
</contrib-group>
<pub-date><year>2021</year><month>3</month><day>5</day></pub-date>
</article-meta>
<journal-meta>
<journal-title-group><journal-title>Nature</journal-title></journal-title-group>
<journal-id journal-id-type="iso-abbrev">Nat.</journal-id>
<issn pub-type="epub">1476-4687</issn>
<publisher><publisher-name>Springer</publisher-name></publisher>
</journal-meta>
</front>
<body>
<sec id="s1">
<title>Introduction</title>
<p>Outer text.</p>
<sec id="s1a">
<title>Background</title>
<p>Middle text.</p>
<sec id="s1a1">
<title>Detail</title>
<p>Inner text.</p>
</sec>
</sec>
</sec>
<sec id="s2">
<title>Results</title>
<fig><caption>First figure</caption></fig>
<fig><caption>Second figure</caption></fig>
<table-wrap><label>Table 1</label><caption>Counts</caption></table-wrap>
</sec>
</body>
<back>
<ref-list>
<ref id="r1">
<element-citation publication-type="journal">
<name><surname>Mann</surname><given-names>BJ</given-names></name>
<article-title>Some paper</article-title>
<source>Proc Natl Acad Sci</source>
<year>1991</year>
<volume>88</volume>
<fpage>3248</fpage>
<lpage>3252</lpage>
<pub-id pub-id-type="doi">10.5555/xyz</pub-id>
</element-citation>
</ref>
</ref-list>
<supplementary-material id="supp1">
<title>Supp Table</title>
<media xlink:href="supp1.xlsx"/>
</supplementary-material>
<supplementary-material id="supp2">
<title>No media here</title>
</supplementary-material>
</back>
</article>`

func mustParse(t *testing.T) *Article {
	t.Helper()
	a, err := Parse(sampleArticle)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return a
}

func TestParseMetadata(t *testing.T) {
	a := mustParse(t)
	if a.Title != "A study of CO2 levels" {
		t.Fatalf("got title=%q", a.Title)
	}
	if a.Doi != "10.1234/abc" || a.Pmid != "32960547" || a.Pmcid != "7906746" {
		t.Fatalf("got doi=%q pmid=%q pmcid=%q", a.Doi, a.Pmid, a.Pmcid)
	}
	if a.Journal.Title != "Nature" || a.Journal.Abbreviation != "Nat." || a.Journal.EIssn != "1476-4687" || a.Journal.Publisher != "Springer" {
		t.Fatalf("got journal=%+v", a.Journal)
	}
	if a.PubDate != "2021-03-05" {
		t.Fatalf("got pub_date=%q", a.PubDate)
	}
}

func TestParseAuthors(t *testing.T) {
	a := mustParse(t)
	if len(a.Authors) != 1 {
		t.Fatalf("got %d authors", len(a.Authors))
	}
	au := a.Authors[0]
	if au.FullName != "John Doe" || !au.Corresponding || au.Email != "john.doe@example.org" {
		t.Fatalf("got author=%+v", au)
	}
	if len(au.Roles) != 1 || au.Roles[0] != "Conceptualization" {
		t.Fatalf("got roles=%v", au.Roles)
	}
}

func TestParseNestedSections(t *testing.T) {
	a := mustParse(t)
	var intro *Section
	for i := range a.Sections {
		if a.Sections[i].Id == "s1" {
			intro = &a.Sections[i]
		}
	}
	if intro == nil {
		t.Fatalf("section s1 not found in %+v", a.Sections)
	}
	if intro.Text != "Outer text." {
		t.Fatalf("got s1 text=%q", intro.Text)
	}
	if len(intro.Subsections) != 1 || intro.Subsections[0].Id != "s1a" {
		t.Fatalf("got s1 subsections=%+v", intro.Subsections)
	}
	background := intro.Subsections[0]
	if background.Text != "Middle text." {
		t.Fatalf("got s1a text=%q", background.Text)
	}
	if len(background.Subsections) != 1 || background.Subsections[0].Id != "s1a1" {
		t.Fatalf("got s1a subsections=%+v", background.Subsections)
	}
	if background.Subsections[0].Text != "Inner text." {
		t.Fatalf("got s1a1 text=%q", background.Subsections[0].Text)
	}
}

func TestParseFigureIdFallback(t *testing.T) {
	a := mustParse(t)
	var results *Section
	for i := range a.Sections {
		if a.Sections[i].Id == "s2" {
			results = &a.Sections[i]
		}
	}
	if results == nil {
		t.Fatalf("section s2 not found")
	}
	if len(results.Figures) != 2 {
		t.Fatalf("got %d figures", len(results.Figures))
	}
	if results.Figures[0].Id != "fig_1" || results.Figures[1].Id != "fig_2" {
		t.Fatalf("got figure ids %q, %q", results.Figures[0].Id, results.Figures[1].Id)
	}
	if len(results.Tables) != 1 || results.Tables[0].Id != "table_1" {
		t.Fatalf("got tables=%+v", results.Tables)
	}
}

func TestParseReferences(t *testing.T) {
	a := mustParse(t)
	if len(a.References) != 1 {
		t.Fatalf("got %d references", len(a.References))
	}
	r := a.References[0]
	if r.Pages != "3248-3252" {
		t.Fatalf("got pages=%q", r.Pages)
	}
	if r.Journal != "Proc Natl Acad Sci" || r.Year != "1991" || r.Volume != "88" {
		t.Fatalf("got reference=%+v", r)
	}
	if len(r.Authors) != 1 || r.Authors[0].Surname != "Mann" {
		t.Fatalf("got ref authors=%+v", r.Authors)
	}
}

func TestParseSupplementaryMaterialsDiscardsMissingMedia(t *testing.T) {
	a := mustParse(t)
	if len(a.SupplementaryMaterials) != 1 {
		t.Fatalf("got %d supplementary materials, want 1 (missing-media entry discarded)", len(a.SupplementaryMaterials))
	}
	m := a.SupplementaryMaterials[0]
	if m.Id != "supp1" || m.FileURL != "supp1.xlsx" || m.FileType != "xlsx" {
		t.Fatalf("got supplementary material=%+v", m)
	}
}

func TestParseSyntheticSectionWhenNoSecElements(t *testing.T) {
	doc := `<article><front><article-meta><title-group><article-title>No Sections</article-title></title-group></article-meta></front>
<body><p>First paragraph.</p><p>Second paragraph.</p><fig><caption>Only figure</caption></fig></body></article>`
	a, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(a.Sections) != 1 {
		t.Fatalf("got %d sections, want 1 synthetic section", len(a.Sections))
	}
	sec := a.Sections[0]
	if sec.SectionType != "body" || sec.Title != "Main Content" {
		t.Fatalf("got synthetic section=%+v", sec)
	}
	if sec.Text != "First paragraph.\nSecond paragraph." {
		t.Fatalf("got synthetic text=%q", sec.Text)
	}
	if len(sec.Figures) != 1 {
		t.Fatalf("got %d figures in synthetic section", len(sec.Figures))
	}
}

func TestParseAbstractSynthesizedSection(t *testing.T) {
	doc := `<article><front><article-meta><title-group><article-title>T</article-title></title-group></article-meta></front>
<abstract><p>Summary text.</p></abstract>
<body><sec id="s1"><p>Body text.</p></sec></body></article>`
	a, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(a.Sections) != 2 {
		t.Fatalf("got %d sections, want abstract + body", len(a.Sections))
	}
	if a.Sections[0].SectionType != "abstract" || a.Sections[0].Title != "Abstract" {
		t.Fatalf("got first section=%+v", a.Sections[0])
	}
	if a.Sections[0].Text != "Summary text." {
		t.Fatalf("got abstract text=%q", a.Sections[0].Text)
	}
}

func TestParseFundingStatementFallback(t *testing.T) {
	doc := `<article><front><article-meta>
<title-group><article-title>T</article-title></title-group>
<funding-group><funding-statement>Supported by NIH grant X.</funding-statement></funding-group>
</article-meta></front><body></body></article>`
	a, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(a.Funding) != 1 || a.Funding[0].Source != "General Funding" || a.Funding[0].Statement != "Supported by NIH grant X." {
		t.Fatalf("got funding=%+v", a.Funding)
	}
}

func TestParsePubDateScopedToPubDateBlock(t *testing.T) {
	doc := `<article><front><article-meta>
<title-group><article-title>T</article-title></title-group>
<pub-date><year>2021</year></pub-date>
</article-meta></front>
<back><ref-list><ref id="r1"><element-citation><year>1991</year><month>6</month></element-citation></ref></ref-list></back>
</article>`
	a, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.PubDate != "2021" {
		t.Fatalf("got pub_date=%q, want 2021 (reference dates must not leak in)", a.PubDate)
	}
}
