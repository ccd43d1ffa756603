// Package extract implements the Developer-Domain Extractor: per-store
// ordered heuristics over a store-listing HTML body that yield a developer
// domain. Meta tags and anchors are found with goquery DOM selectors; regular
// expressions are used only to match anchor text.
package extract

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/devx/appads-extractor/internal/models"
)

// ErrDomainNotFound is returned when every extractor for a store kind fails
// to yield a valid developer domain.
var ErrDomainNotFound = errors.New("developer domain not found")

// extractorFunc tries to pull a raw developer URL out of a parsed document.
// An empty string (ok=false) means "try the next extractor".
type extractorFunc func(doc *goquery.Document) (string, bool)

func metaDeveloperURLExtractor(doc *goquery.Document) (string, bool) {
	href, exists := doc.Find(`meta[name="appstore:developer_url"]`).Attr("content")
	if exists && href != "" {
		return href, true
	}
	return "", false
}

func googlePlayExtractors() []extractorFunc {
	return []extractorFunc{
		metaDeveloperURLExtractor,
		func(doc *goquery.Document) (string, bool) {
			return firstMatchingAnchorHref(doc, func(href string) bool {
				return strings.Contains(href, "/store/apps/dev?id=") || strings.Contains(href, "/store/apps/developer?id=")
			})
		},
	}
}

func appStoreExtractors() []extractorFunc {
	return []extractorFunc{
		func(doc *goquery.Document) (string, bool) {
			var found string
			doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				class, _ := s.Attr("class")
				if strings.Contains(class, "icon-after") && strings.Contains(class, "icon-external") {
					if href, ok := s.Attr("href"); ok && href != "" {
						found = href
						return false
					}
				}
				return true
			})
			return found, found != ""
		},
		func(doc *goquery.Document) (string, bool) {
			return firstMatchingAnchorHref(doc, func(href string) bool {
				return strings.Contains(href, "/developer/")
			})
		},
	}
}

func amazonExtractors() []extractorFunc {
	return []extractorFunc{
		func(doc *goquery.Document) (string, bool) {
			return firstMatchingAnchorHref(doc, func(href string) bool {
				return strings.Contains(href, "/developer/")
			})
		},
		func(doc *goquery.Document) (string, bool) {
			return firstAnchorHrefMatchingText(doc, regexp.MustCompile(`(?i)^Visit the .+ Store$`))
		},
	}
}

func rokuExtractors() []extractorFunc {
	return []extractorFunc{
		metaDeveloperURLExtractor,
		func(doc *goquery.Document) (string, bool) {
			return firstMatchingAnchorHref(doc, func(href string) bool {
				return strings.Contains(href, "channelstore.roku.com/developer")
			})
		},
		func(doc *goquery.Document) (string, bool) {
			return firstAnchorHrefMatchingText(doc, regexp.MustCompile(`(?i)^More by .+$`))
		},
	}
}

func samsungExtractors() []extractorFunc {
	return []extractorFunc{
		metaDeveloperURLExtractor,
		func(doc *goquery.Document) (string, bool) {
			return firstMatchingAnchorHref(doc, func(href string) bool {
				return strings.Contains(href, "samsung.com") && strings.Contains(href, "developer")
			})
		},
		func(doc *goquery.Document) (string, bool) {
			return firstAnchorHrefMatchingText(doc, regexp.MustCompile(`(?i)^More from Developer$`))
		},
		func(doc *goquery.Document) (string, bool) {
			var found string
			doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
				if strings.Contains(strings.ToLower(dt.Text()), "developer") {
					dd := dt.Next()
					if href, ok := dd.Find("a").Attr("href"); ok && href != "" {
						found = href
						return false
					}
				}
				return true
			})
			return found, found != ""
		},
	}
}

func extractorsFor(kind models.StoreKind) []extractorFunc {
	switch kind {
	case models.StoreGooglePlay:
		return googlePlayExtractors()
	case models.StoreAppStore:
		return appStoreExtractors()
	case models.StoreAmazon:
		return amazonExtractors()
	case models.StoreRoku:
		return rokuExtractors()
	case models.StoreSamsung:
		return samsungExtractors()
	default:
		return nil
	}
}

// Extract runs the ordered heuristics for kind against html, returning the
// first valid developer domain. Returns ErrDomainNotFound if none validate.
func Extract(kind models.StoreKind, html string) (models.DeveloperDomain, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ErrDomainNotFound
	}

	for _, extractor := range extractorsFor(kind) {
		raw, ok := extractor(doc)
		if !ok {
			continue
		}
		if domain, valid := normalizeAndValidate(raw); valid {
			return domain, nil
		}
	}
	return "", ErrDomainNotFound
}

func firstMatchingAnchorHref(doc *goquery.Document, match func(href string) bool) (string, bool) {
	var found string
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if ok && href != "" && match(href) {
			found = href
			return false
		}
		return true
	})
	return found, found != ""
}

func firstAnchorHrefMatchingText(doc *goquery.Document, textPattern *regexp.Regexp) (string, bool) {
	var found string
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if textPattern.MatchString(text) {
			if href, ok := s.Attr("href"); ok && href != "" {
				found = href
				return false
			}
		}
		return true
	})
	return found, found != ""
}
