// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/citefetch/internal/page"
)

// widgets maps selectors of text-less challenge widgets to the name
// reported for them.
var widgets = []struct {
	selector string
	name     string
}{
	{"#gs_captcha_ccl, #gs_captcha_f, #gs_captcha_c", "gs_captcha"},
	{"iframe[src*='recaptcha'], .g-recaptcha, #recaptcha", "recaptcha"},
}

// VisibleText extracts the body text of an HTML document, dropping script
// and style content and collapsing whitespace. Challenge widgets found in
// the markup are appended as page.Widget tokens.
func VisibleText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	parts := []string{strings.TrimSpace(doc.Find("title").Text())}
	parts = append(parts, strings.Fields(doc.Find("body").Text())...)
	for _, w := range widgets {
		if doc.Find(w.selector).Length() > 0 {
			parts = append(parts, page.Widget(w.name))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}
