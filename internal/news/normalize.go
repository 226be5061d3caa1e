package news

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"northpointtriallaw.com/opsdash/internal/langdetect"
	"northpointtriallaw.com/opsdash/internal/language"
	payloadschema "northpointtriallaw.com/opsdash/internal/schema"
	"northpointtriallaw.com/opsdash/internal/store"
)

type Rejection struct {
	URL    string
	Reason string
}

type NormalizeResult struct {
	Articles   []store.Article
	Duplicates int
	Rejected   []Rejection
}

// Normalize cleans, tags and validates raw articles. The first occurrence of a
// URL wins; later duplicates are counted and dropped.
func Normalize(raw []RawArticle) NormalizeResult {
	out := NormalizeResult{Articles: make([]store.Article, 0, len(raw))}
	seen := make(map[string]struct{}, len(raw))

	for _, item := range raw {
		title := collapseSpace(item.Title)
		url := strings.TrimSpace(cleanText(item.URL))
		if title == "" || url == "" {
			out.Rejected = append(out.Rejected, Rejection{URL: url, Reason: "missing title or url"})
			continue
		}
		if _, dup := seen[url]; dup {
			out.Duplicates++
			continue
		}
		seen[url] = struct{}{}

		summary := StripHTML(item.Summary)
		article := store.Article{
			Title:       title,
			URL:         url,
			Tag:         Categorize(title + " " + summary),
			Summary:     summary,
			ImageURL:    strings.TrimSpace(cleanText(item.ImageURL)),
			PublishedAt: item.PublishedAt.UTC(),
			Source:      collapseSpace(item.Source),
			Language:    detectLanguage(title+" "+summary, item.Language),
		}

		if err := payloadschema.ValidateArticle(toPayload(article)); err != nil {
			out.Rejected = append(out.Rejected, Rejection{URL: url, Reason: err.Error()})
			continue
		}
		out.Articles = append(out.Articles, article)
	}
	return out
}

// StripHTML returns the text content of an HTML fragment with whitespace collapsed.
// Plain text passes through unchanged apart from whitespace.
func StripHTML(fragment string) string {
	fragment = cleanText(fragment)
	if !strings.ContainsAny(fragment, "<&") {
		return collapseSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	return collapseSpace(doc.Text())
}

func detectLanguage(text, upstream string) string {
	if code := langdetect.DetectISO6391(text); code != "" {
		return code
	}
	return language.ISO6391(upstream)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(cleanText(s)), " ")
}

// cleanText drops invalid UTF-8 and NUL bytes, which Postgres TEXT columns reject.
func cleanText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}

func toPayload(a store.Article) payloadschema.Article {
	p := payloadschema.Article{
		Title:       a.Title,
		URL:         a.URL,
		Tag:         a.Tag,
		Summary:     a.Summary,
		PublishedAt: a.PublishedAt.Format(time.RFC3339),
		Source:      a.Source,
		Language:    a.Language,
	}
	if a.ImageURL != "" {
		image := a.ImageURL
		p.ImageURL = &image
	}
	return p
}
