package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	. "factlens/internal/common"

	"factlens/internal/models"

	"github.com/PuerkitoBio/goquery"
)

const (
	contentSelector = "p, h1, h2, h3, h4, h5, h6, article, .post-content, .tweet-text"

	// minBlockLength drops navigation labels, captions and other short
	// boilerplate.
	minBlockLength = 50
)

// ExtractPage collects the visible text and metadata of an HTML document.
// Heading and title text is repeated to weight it in the analysis.
func ExtractPage(pageURL, htmlContent string) (*models.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var blocks []string
	doc.Find(contentSelector).Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if IsHidden(node) {
			return
		}

		text := strings.TrimSpace(sel.Text())
		if IsHeading(node) || HasClass(node, "article-title") || HasClass(node, "post-title") {
			text = text + " " + text
		}
		if utf8.RuneCountInString(text) > minBlockLength {
			blocks = append(blocks, text)
		}
	})

	return &models.PageContent{
		URL:      pageURL,
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Text:     strings.Join(blocks, "\n"),
		Metadata: extractMetadata(doc),
	}, nil
}

// extractMetadata is best effort. A missing or malformed field is skipped.
func extractMetadata(doc *goquery.Document) map[string]interface{} {
	metadata := make(map[string]interface{})

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		metadata[strings.TrimPrefix(property, "og:")] = sel.AttrOr("content", "")
	})

	if script := doc.Find(`script[type="application/ld+json"]`).First(); script.Length() > 0 {
		var schema interface{}
		if err := json.Unmarshal([]byte(script.Text()), &schema); err == nil {
			metadata["schema"] = schema
		}
	}

	if author := doc.Find(`meta[name="author"]`).First(); author.Length() > 0 {
		metadata["author"] = author.AttrOr("content", "")
	}
	if published := doc.Find(`meta[property="article:published_time"]`).First(); published.Length() > 0 {
		metadata["publishedTime"] = published.AttrOr("content", "")
	}

	return metadata
}
