// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package endnote reads and writes the line-oriented tagged EndNote export
// format and converts records to CSL for reference managers.
package endnote

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/citefetch/pkg/types"
)

// Field is one tagged line, kept for tags Record has no dedicated slot for.
type Field struct {
	Tag   string `yaml:"tag"`
	Value string `yaml:"value"`
}

// Record is one parsed EndNote citation.
type Record struct {
	Type      string   `yaml:"type"`                // %0
	Title     string   `yaml:"title"`               // %T
	Authors   []string `yaml:"authors,omitempty"`   // %A, repeated
	Year      string   `yaml:"year,omitempty"`      // %D
	Journal   string   `yaml:"journal,omitempty"`   // %J or %B
	Volume    string   `yaml:"volume,omitempty"`    // %V
	Number    string   `yaml:"number,omitempty"`    // %N
	Pages     string   `yaml:"pages,omitempty"`     // %P
	Publisher string   `yaml:"publisher,omitempty"` // %I
	DOI       string   `yaml:"doi,omitempty"`       // %R
	Abstract  string   `yaml:"abstract,omitempty"`  // %X
	URL       string   `yaml:"url,omitempty"`       // %U
	Other     []Field  `yaml:"other,omitempty"`

	// Path is the file the record was read from, if any.
	Path string `yaml:"-"`
}

// Parse reads tagged lines from r. Lines that do not start with a % tag
// continue the previous field.
func Parse(r io.Reader) (Record, error) {
	var rec Record
	var last *string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(strings.TrimPrefix(sc.Text(), "\ufeff"), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) < 2 || line[0] != '%' {
			if last != nil {
				*last = strings.TrimSpace(*last + " " + strings.TrimSpace(line))
			}
			continue
		}
		tag, value := line[:2], strings.TrimSpace(line[2:])
		last = rec.slot(tag, value)
	}
	if err := sc.Err(); err != nil {
		return Record{}, fmt.Errorf("reading EndNote record: %w", err)
	}
	return rec, nil
}

// slot stores value under tag and returns the string it was stored in so
// continuation lines can extend it.
func (r *Record) slot(tag, value string) *string {
	set := func(p *string) *string {
		if *p == "" {
			*p = value
		}
		return p
	}
	switch tag {
	case "%0":
		return set(&r.Type)
	case "%T":
		return set(&r.Title)
	case "%A":
		r.Authors = append(r.Authors, value)
		return &r.Authors[len(r.Authors)-1]
	case "%D":
		return set(&r.Year)
	case "%J", "%B":
		return set(&r.Journal)
	case "%V":
		return set(&r.Volume)
	case "%N":
		return set(&r.Number)
	case "%P":
		return set(&r.Pages)
	case "%I":
		return set(&r.Publisher)
	case "%R":
		return set(&r.DOI)
	case "%X":
		return set(&r.Abstract)
	case "%U":
		return set(&r.URL)
	default:
		r.Other = append(r.Other, Field{Tag: tag, Value: value})
		return &r.Other[len(r.Other)-1].Value
	}
}

// ReadFile parses the record stored at path.
func ReadFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	rec, err := Parse(f)
	if err != nil {
		return Record{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	rec.Path = path
	return rec, nil
}

// ReadDir parses every export file in dir, sorted by file name.
func ReadDir(dir string) ([]Record, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+types.EndNoteExt))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(matches)
	recs := make([]Record, 0, len(matches))
	for _, m := range matches {
		rec, err := ReadFile(m)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Format writes rec as tagged lines.
func Format(rec Record, w io.Writer) error {
	bw := bufio.NewWriter(w)
	line := func(tag, value string) {
		if value != "" {
			fmt.Fprintf(bw, "%s %s\n", tag, value)
		}
	}
	line("%0", rec.Type)
	line("%T", rec.Title)
	for _, a := range rec.Authors {
		line("%A", a)
	}
	line("%D", rec.Year)
	line("%J", rec.Journal)
	line("%V", rec.Volume)
	line("%N", rec.Number)
	line("%P", rec.Pages)
	line("%I", rec.Publisher)
	line("%R", rec.DOI)
	line("%X", rec.Abstract)
	line("%U", rec.URL)
	for _, f := range rec.Other {
		line(f.Tag, f.Value)
	}
	return bw.Flush()
}
