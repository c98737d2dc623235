// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package titles loads the list of paper titles to acquire.
package titles

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdiddy/citefetch/internal/faults"
)

// ErrEmpty is returned when the input holds no titles.
var ErrEmpty = errors.New("no titles in input")

// Load reads one title per line from path. Lines are trimmed, blank lines
// are skipped and repeated titles keep their first occurrence. A missing,
// unreadable or empty file is a usage error.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, faults.Usage("loading titles", fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	titles, err := Parse(f)
	if err != nil {
		return nil, faults.Usage("loading titles", fmt.Errorf("reading %s: %w", path, err))
	}
	return titles, nil
}

// Parse reads titles from r with the same rules as Load.
func Parse(r io.Reader) ([]string, error) {
	var titles []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		t := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		titles = append(titles, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, ErrEmpty
	}
	return titles, nil
}
