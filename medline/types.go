// Package medline parses PubMed MEDLINE XML (the efetch/db=pubmed schema)
// into structured Article records.
package medline

// Article is a single MEDLINE bibliographic record.
type Article struct {
	Pmid                 string
	Title                string
	Journal              string
	JournalAbbreviation  string
	Issn                 string
	PubDate              string
	Doi                  string
	PmcId                string
	Authors              []Author
	AuthorCount          int
	ArticleTypes         []string
	AbstractText         string
	StructuredAbstract   []AbstractSection
	MeshHeadings         []MeshTerm
	SupplementalConcepts []string
	Keywords             []string
	ChemicalList         []Chemical
	Volume               string
	Issue                string
	Pages                string
	Language             string
}

// AbstractSection is one labeled (or unlabeled) piece of a structured
// abstract, in document order.
type AbstractSection struct {
	Label string
	Text  string
}

// Author is either a personal or collective author.
type Author struct {
	LastName       string
	ForeName       string
	Initials       string
	Suffix         string
	FullName       string
	CollectiveName string
	Orcid          string
	Corresponding  bool
	Roles          []string
	Affiliations   []Affiliation
}

// Affiliation is one parsed affiliation string.
type Affiliation struct {
	Institution string
	Department  string
	Address     string
	Country     string
	Email       string
}

// MeshTerm pairs a MeSH descriptor with its ordered qualifiers.
type MeshTerm struct {
	DescriptorName string
	DescriptorUI   string
	MajorTopic     bool
	Qualifiers     []MeshQualifier
}

// MeshQualifier is one qualifier attached to a MeshTerm.
type MeshQualifier struct {
	QualifierName string
	QualifierUI   string
	MajorTopic    bool
}

// Chemical is one substance listed for an article.
type Chemical struct {
	Name           string
	RegistryNumber string
	UI             string
}
