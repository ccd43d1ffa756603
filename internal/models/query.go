package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedTerm is returned when a search term JSON value is neither a
// string nor a non-empty structured-term object.
var ErrMalformedTerm = errors.New("malformed search term")

// ParseSearchTerms decodes the request's searchTerms field — each element is
// either a free-text string or a StructuredTerm object — into a SearchQuery,
// per spec.md §9's tagged-variant design note.
func ParseSearchTerms(raw []json.RawMessage) (SearchQuery, error) {
	terms := make([]SearchTerm, 0, len(raw))
	for i, r := range raw {
		var asString string
		if err := json.Unmarshal(r, &asString); err == nil {
			terms = append(terms, SearchTerm{Kind: TermFreeText, FreeText: asString})
			continue
		}

		var asStruct StructuredTerm
		if err := json.Unmarshal(r, &asStruct); err != nil {
			return SearchQuery{}, fmt.Errorf("term %d: %w", i, ErrMalformedTerm)
		}
		if asStruct.IsEmpty() {
			return SearchQuery{}, fmt.Errorf("term %d: %w", i, ErrMalformedTerm)
		}
		terms = append(terms, SearchTerm{Kind: TermStructured, Structured: asStruct})
	}
	return SearchQuery{Terms: terms}, nil
}
