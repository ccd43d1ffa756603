// Package store maps app-store bundle identifiers to a StoreKind and the
// canonical store-listing URL to scrape. Classification is deterministic and
// side-effect-free: the same bundle identifier always yields the same kind.
package store

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/devx/appads-extractor/internal/models"
)

var (
	amazonPattern     = regexp.MustCompile(`^[bB][0-9A-Za-z]{9,10}$`)
	samsungPattern    = regexp.MustCompile(`^[gG]\d{8,15}$`)
	appStorePattern   = regexp.MustCompile(`^(id)?\d{8,12}$`)
	googlePlayPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*(\.[a-zA-Z][a-zA-Z0-9_]*)+$`)
	rokuNumericPat    = regexp.MustCompile(`^\d{4,6}$`)
	rokuHashPattern   = regexp.MustCompile(`(?i)^[a-f0-9]{32}:[a-f0-9]{32}$`)
	rokuAlnumPattern  = regexp.MustCompile(`^[a-zA-Z0-9]{4,}$`)
)

// Classify maps a trimmed bundle string to a StoreKind. The caller is
// responsible for trimming; an already-trimmed empty string yields Unknown.
func Classify(bundleId string) models.StoreKind {
	id := bundleId
	switch {
	case amazonPattern.MatchString(id):
		return models.StoreAmazon
	case samsungPattern.MatchString(id):
		return models.StoreSamsung
	case appStorePattern.MatchString(id):
		return models.StoreAppStore
	case googlePlayPattern.MatchString(id):
		return models.StoreGooglePlay
	case rokuNumericPat.MatchString(id):
		return models.StoreRokuNumeric
	case rokuHashPattern.MatchString(id):
		return models.StoreRoku
	case !strings.Contains(id, ".") && rokuAlnumPattern.MatchString(id):
		return models.StoreRoku
	default:
		return models.StoreUnknown
	}
}

// ListingURL returns the canonical store-listing URL for a bundle identifier
// given its classified kind. Returns ok=false for kinds with no listing URL
// (Unknown, RokuNumeric — both are treated as unsupported by the caller).
func ListingURL(kind models.StoreKind, bundleId string) (string, bool) {
	switch kind {
	case models.StoreGooglePlay:
		return fmt.Sprintf("https://play.google.com/store/apps/details?id=%s", url.QueryEscape(bundleId)), true
	case models.StoreAppStore:
		id := bundleId
		if !strings.HasPrefix(id, "id") {
			id = "id" + id
		}
		return fmt.Sprintf("https://apps.apple.com/us/app/%s", id), true
	case models.StoreAmazon:
		return fmt.Sprintf("https://www.amazon.com/dp/%s", url.QueryEscape(bundleId)), true
	case models.StoreRoku:
		return fmt.Sprintf("https://channelstore.roku.com/details/%s", url.QueryEscape(bundleId)), true
	case models.StoreSamsung:
		return fmt.Sprintf("https://www.samsung.com/us/appstore/app/%s", url.QueryEscape(bundleId)), true
	default:
		return "", false
	}
}
