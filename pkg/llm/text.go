package llm

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText reduces stored article content to whitespace-normalized text
// before it goes into a prompt. HTML content is stripped to the text of
// its main content area when one exists, falling back to the whole
// document. Content that does not parse is normalized as-is.
func PlainText(content string) string {
	text := content
	if strings.Contains(content, "<") && strings.Contains(content, ">") {
		if extracted := extractText(content); extracted != "" {
			text = extracted
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func extractText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}

	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
	}

	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			return selected.Text()
		}
	}

	return doc.Text()
}
