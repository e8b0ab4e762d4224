// Package textutil flattens recruiter-submitted HTML into plain text so
// keyword scoring never matches markup.
package textutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func ExtractText(html string) string {
	if !strings.ContainsRune(html, '<') {
		return CleanText(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return CleanText(html)
	}
	doc.Find("script, style").Remove()
	return CleanText(doc.Text())
}

func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
