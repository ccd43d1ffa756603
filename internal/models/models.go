// Package models defines the shared data types passed between pipeline
// components: bundle identifiers, store classification, fetched documents,
// analysis results, and the per-request/batch aggregates.
package models

import "time"

// StoreKind identifies which app store a bundle identifier belongs to.
type StoreKind string

const (
	StoreGooglePlay   StoreKind = "googleplay"
	StoreAppStore     StoreKind = "appstore"
	StoreAmazon       StoreKind = "amazon"
	StoreRoku         StoreKind = "roku"
	StoreRokuNumeric  StoreKind = "roku-numeric"
	StoreSamsung      StoreKind = "samsung"
	StoreUnknown      StoreKind = "unknown"
)

// BundleId is an opaque, trimmed app-store identifier supplied by the caller.
type BundleId string

// StoreListing is the transient result of fetching a store page.
type StoreListing struct {
	URL       string
	Body      string
	FetchedAt time.Time
	FromCache bool
}

// DeveloperDomain is a lower-cased, scheme/path-free registrable hostname.
type DeveloperDomain string

// AppAdsDocument is the fetched (or cached) app-ads.txt body for a domain.
type AppAdsDocument struct {
	URL       string
	Body      string
	ByteSize  int
	FetchedAt time.Time
	FromCache bool
}

// Relationships tallies the three relationship categories across valid lines.
type Relationships struct {
	Direct   int `json:"direct"`
	Reseller int `json:"reseller"`
	Other    int `json:"other"`
}

// AnalyzedAppAds is the derived summary of an AppAdsDocument.
type AnalyzedAppAds struct {
	TotalLines       int           `json:"totalLines"`
	ValidLines       int           `json:"validLines"`
	CommentLines     int           `json:"commentLines"`
	EmptyLines       int           `json:"emptyLines"`
	InvalidLines     int           `json:"invalidLines"`
	UniquePublishers int           `json:"uniquePublishers"`
	Relationships    Relationships `json:"relationships"`
}

// TermKind distinguishes a free-text search term from a structured one.
type TermKind string

const (
	TermFreeText   TermKind = "freetext"
	TermStructured TermKind = "structured"
)

// StructuredTerm is a subset of app-ads.txt fields to match exactly
// (relationship permits substring match; domain requires equality).
type StructuredTerm struct {
	Domain       string `json:"domain,omitempty"`
	PublisherId  string `json:"publisherId,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	TagId        string `json:"tagId,omitempty"`
}

// IsEmpty reports whether every field of the structured term is blank.
func (s StructuredTerm) IsEmpty() bool {
	return s.Domain == "" && s.PublisherId == "" && s.Relationship == "" && s.TagId == ""
}

// SearchTerm is a tagged variant over free text and structured terms,
// matching spec's "dynamic union type" design note with exhaustive handling
// at the analyzer rather than an interface hierarchy.
type SearchTerm struct {
	Kind       TermKind
	FreeText   string
	Structured StructuredTerm
}

// SearchQuery is an ordered, request-invariant list of search terms (≤ 5).
// Terms form a single AND-group unless they originate from distinct
// structured records, in which case each structured record is its own group.
type SearchQuery struct {
	Terms []SearchTerm
}

// Empty reports whether the query carries no terms.
func (q SearchQuery) Empty() bool {
	return len(q.Terms) == 0
}

// TermMatch is one matching line for a search term.
type TermMatch struct {
	TermIndex  int    `json:"termIndex"`
	LineNumber int    `json:"lineNumber"`
	Line       string `json:"line"`
}

// SearchResults is the derived result of running a SearchQuery against a document.
type SearchResults struct {
	Terms        []string      `json:"terms"`
	PerTerm      [][]TermMatch `json:"perTerm"`
	PerTermCount []int         `json:"perTermCount"`
	Union        []TermMatch   `json:"union"`
	UnionCount   int           `json:"unionCount"`
	Cap          int           `json:"cap"`
	Truncated    bool          `json:"truncated"`
}

// AppAdsPayload is the on-the-wire representation of a fetched document plus
// its analysis, embedded in a successful BundleResult.
type AppAdsPayload struct {
	Exists           bool            `json:"exists"`
	URL              string          `json:"url,omitempty"`
	Content          string          `json:"content,omitempty"`
	ContentTruncated bool            `json:"contentTruncated,omitempty"`
	Analyzed         *AnalyzedAppAds `json:"analyzed,omitempty"`
	SearchResults    *SearchResults  `json:"searchResults,omitempty"`
}

// BundleResult is the outcome for a single input bundle identifier.
type BundleResult struct {
	BundleId  string         `json:"bundleId"`
	StoreKind StoreKind      `json:"storeType"`
	Success   bool           `json:"success"`
	Domain    string         `json:"domain,omitempty"`
	AppAdsTxt *AppAdsPayload `json:"appAdsTxt,omitempty"`
	ErrorKind string         `json:"errorKind,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// CacheStats summarizes cache activity across a batch/stream request.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Writes    int64 `json:"writes"`
	Evictions int64 `json:"evictions"`
}

// BatchResponse is the final aggregate returned for non-streaming requests.
type BatchResponse struct {
	Success        bool           `json:"success"`
	Results        []BundleResult `json:"results"`
	TotalProcessed int            `json:"totalProcessed"`
	SuccessCount   int            `json:"successCount"`
	ErrorCount     int            `json:"errorCount"`
	ProcessingTime string         `json:"processingTime"`
	CacheStats     CacheStats     `json:"cacheStats"`
}
