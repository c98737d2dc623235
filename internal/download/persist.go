// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/pkg/types"
)

const (
	maxNameRunes = 200
	keepRunes    = 197
)

// Sanitize makes title safe as a file name: each of < > : " / \ | ? * is
// replaced with an underscore, leading and trailing spaces and dots are
// trimmed, and names longer than 200 characters keep their first 197
// followed by "...". An empty result becomes "untitled".
func Sanitize(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, title)
	name = strings.Trim(name, ". ")
	if runes := []rune(name); len(runes) > maxNameRunes {
		name = string(runes[:keepRunes]) + "..."
	}
	if name == "" {
		return "untitled"
	}
	return name
}

// UniquePath returns dir/name+ext, or the first of name_1+ext, name_2+ext,
// ... that does not exist. self is a path that may be returned even though
// it exists, since it is the file being moved.
func UniquePath(dir, name, ext, self string) string {
	candidate := filepath.Join(dir, name+ext)
	for i := 1; ; i++ {
		if candidate == self {
			return candidate
		}
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = filepath.Join(dir, name+"_"+strconv.Itoa(i)+ext)
	}
}

// ExtractCanonicalTitle returns the remainder of the first line starting
// with %T, trimmed. It reports false when the file has no such line or
// cannot be read.
func ExtractCanonicalTitle(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimPrefix(sc.Text(), "\ufeff")
		if strings.HasPrefix(line, "%T") {
			t := strings.TrimSpace(line[2:])
			return t, t != ""
		}
	}
	return "", false
}

// Persister moves resolved exports into the output directory.
type Persister struct {
	OutputDir string
	Now       func() time.Time
}

// NewPersister returns a Persister writing under dir.
func NewPersister(dir string) *Persister {
	return &Persister{OutputDir: dir, Now: time.Now}
}

// Persist names the export at src after its canonical title (the %T field,
// else fallbackTitle, else searchTitle) and moves it to a collision-free
// path in the output directory. On failure the file is left at src and the
// error is a persistence fault.
func (p *Persister) Persist(src, fallbackTitle, searchTitle string) (types.CitationRecord, error) {
	canonical, ok := ExtractCanonicalTitle(src)
	if !ok {
		canonical = strings.TrimSpace(fallbackTitle)
	}
	if canonical == "" {
		canonical = searchTitle
	}

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return types.CitationRecord{}, faults.Persistence("persisting export", fmt.Errorf("creating directory %s: %w", p.OutputDir, err))
	}
	dst := UniquePath(p.OutputDir, Sanitize(canonical), types.EndNoteExt, src)
	if dst != src {
		if err := Move(src, dst); err != nil {
			return types.CitationRecord{}, faults.Persistence("persisting export", err)
		}
	}
	return types.CitationRecord{
		Title:          searchTitle,
		CanonicalTitle: canonical,
		Path:           dst,
		CreatedAt:      p.Now(),
	}, nil
}
