// Package pmc parses PMC JATS XML full-text articles into structured
// records. Extraction proceeds by substring scanning with a tag-depth
// counter rather than building a DOM: JATS schemas vary and tolerate
// malformation in ways a strict deserializer does not.
package pmc

// Article is a PMC full-text record.
type Article struct {
	Pmcid                  string
	Pmid                   string
	Title                  string
	Authors                []Author
	Journal                JournalInfo
	PubDate                string
	Doi                    string
	ArticleType            string
	Keywords               []string
	Funding                []FundingInfo
	ConflictOfInterest     string
	Acknowledgments        string
	DataAvailability       string
	Sections               []Section
	References             []Reference
	SupplementaryMaterials []SupplementaryMaterial
}

// JournalInfo describes the hosting journal.
type JournalInfo struct {
	Title        string
	Abbreviation string
	EIssn        string
	PIssn        string
	Publisher    string
	Volume       string
	Issue        string
}

// FundingInfo is one funding source/award pairing.
type FundingInfo struct {
	Source    string
	AwardId   string
	Statement string
}

// Author is one JATS <contrib>.
type Author struct {
	Surname       string
	GivenNames    string
	FullName      string
	Orcid         string
	Email         string
	Corresponding bool
	Roles         []string
}

// Section is a node in the PMC section tree.
type Section struct {
	SectionType string
	Id          string
	Title       string
	Text        string
	Figures     []Figure
	Tables      []Table
	Subsections []Section
}

// Reference is one bibliography entry.
type Reference struct {
	Id      string
	Title   string
	Authors []ReferenceAuthor
	Journal string
	Year    string
	Volume  string
	Issue   string
	Pages   string
	Doi     string
	Pmid    string
	RefType string
}

// ReferenceAuthor is one author name pair within a Reference.
type ReferenceAuthor struct {
	Surname    string
	GivenNames string
}

// Figure is one <fig>.
type Figure struct {
	Id      string
	Label   string
	Caption string
	AltText string
	FigType string
}

// Table is one <table-wrap>.
type Table struct {
	Id        string
	Label     string
	Caption   string
	Footnotes []string
}

// SupplementaryMaterial is one <supplementary-material> with a resolvable
// file URL; materials with no URL are discarded by the parser.
type SupplementaryMaterial struct {
	Id          string
	ContentType string
	Position    string
	Title       string
	Description string
	FileURL     string
	FileType    string
}
