// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package endnote

import (
	"io"
	"strconv"
	"strings"
	"unicode"

	"go.yaml.in/yaml/v3"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Volume         string    `yaml:"volume,omitempty"`
	Issue          string    `yaml:"issue,omitempty"`
	Page           string    `yaml:"page,omitempty"`
	Publisher      string    `yaml:"publisher,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// cslTypes maps EndNote reference types to CSL item types.
var cslTypes = map[string]string{
	"journal article":        "article-journal",
	"conference proceedings": "paper-conference",
	"conference paper":       "paper-conference",
	"book":                   "book",
	"book section":           "chapter",
	"thesis":                 "thesis",
	"report":                 "report",
	"patent":                 "patent",
	"electronic article":     "article",
}

// WriteCSL writes records as a CSL-YAML list to w.
func WriteCSL(recs []Record, w io.Writer) error {
	items := make([]CSLItem, len(recs))
	seen := map[string]int{}
	for i, r := range recs {
		items[i] = ToCSL(r)
		// Keys must be unique within one bibliography.
		if n := seen[items[i].ID]; n > 0 {
			seen[items[i].ID]++
			items[i].ID += string(rune('a' + n - 1))
		} else {
			seen[items[i].ID] = 1
		}
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// ToCSL converts an EndNote record to a CSLItem.
func ToCSL(r Record) CSLItem {
	item := CSLItem{
		Type:           "article",
		Title:          r.Title,
		ContainerTitle: r.Journal,
		Volume:         r.Volume,
		Issue:          r.Number,
		Page:           r.Pages,
		Publisher:      r.Publisher,
		Abstract:       r.Abstract,
		DOI:            r.DOI,
		URL:            r.URL,
	}
	if t, ok := cslTypes[strings.ToLower(r.Type)]; ok {
		item.Type = t
	}
	for _, a := range r.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	year := leadingYear(r.Year)
	if year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{year}}}
	}
	item.ID = citeKey(item, year)
	return item
}

// parseAuthorName splits an EndNote author into CSL family/given parts.
// "Family, Given" is the usual export form; otherwise it splits on the last
// space. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		return CSLName{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}

func leadingYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return y
}

// citeKey builds a key like vaswani2017attention from the first author's
// family name, the year and the first significant title word.
func citeKey(item CSLItem, year int) string {
	var b strings.Builder
	if len(item.Author) > 0 {
		a := item.Author[0]
		name := a.Family
		if name == "" {
			name = a.Literal
		}
		b.WriteString(keyPart(name))
	}
	if year > 0 {
		b.WriteString(strconv.Itoa(year))
	}
	for _, w := range strings.Fields(item.Title) {
		part := keyPart(w)
		if len(part) > 3 || (len(part) > 0 && !stopWords[part]) {
			b.WriteString(part)
			break
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

var stopWords = map[string]bool{"a": true, "an": true, "the": true, "on": true, "of": true, "in": true, "for": true}

func keyPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
