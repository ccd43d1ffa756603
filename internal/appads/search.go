package appads

import (
	"strings"

	"github.com/devx/appads-extractor/internal/models"
)

// group is a conjunction (AND) of term predicates; a query is the
// disjunction (OR) of its groups, per spec.md §4.6.
type group struct {
	termIndices []int // indices into the original SearchQuery.Terms, for "per-term" tracking
	predicates  []func(e entry) bool
}

// buildGroups implements the free-text-collapses / structured-per-record
// grouping rule: all free-text terms form a single AND-group; each
// structured term becomes its own AND-group over its non-empty fields.
func buildGroups(query models.SearchQuery) []group {
	var groups []group

	var freeTextGroup group
	for i, term := range query.Terms {
		if term.Kind != models.TermFreeText {
			continue
		}
		text := strings.ToLower(term.FreeText)
		freeTextGroup.termIndices = append(freeTextGroup.termIndices, i)
		freeTextGroup.predicates = append(freeTextGroup.predicates, func(e entry) bool {
			return strings.Contains(strings.ToLower(e.raw), text)
		})
	}
	if len(freeTextGroup.predicates) > 0 {
		groups = append(groups, freeTextGroup)
	}

	for i, term := range query.Terms {
		if term.Kind != models.TermStructured || term.Structured.IsEmpty() {
			continue
		}
		g := group{termIndices: []int{i}}
		st := term.Structured
		if st.Domain != "" {
			want := strings.ToLower(strings.TrimSpace(st.Domain))
			g.predicates = append(g.predicates, func(e entry) bool { return e.domain == want })
		}
		if st.PublisherId != "" {
			want := stripInteriorWhitespace(st.PublisherId)
			g.predicates = append(g.predicates, func(e entry) bool {
				return stripInteriorWhitespace(e.publisherId) == want
			})
		}
		if st.Relationship != "" {
			want := strings.ToLower(st.Relationship)
			g.predicates = append(g.predicates, func(e entry) bool {
				return strings.Contains(strings.ToLower(e.relationship), want)
			})
		}
		if st.TagId != "" {
			want := stripInteriorWhitespace(st.TagId)
			g.predicates = append(g.predicates, func(e entry) bool {
				return stripInteriorWhitespace(e.tagId) == want
			})
		}
		groups = append(groups, g)
	}

	return groups
}

func stripInteriorWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func (g group) matches(e entry) bool {
	if len(g.predicates) == 0 {
		return false
	}
	for _, p := range g.predicates {
		if !p(e) {
			return false
		}
	}
	return true
}

// termLabel renders a human-readable label for a search term, for the
// "terms" field of SearchResults.
func termLabel(term models.SearchTerm) string {
	if term.Kind == models.TermFreeText {
		return term.FreeText
	}
	var parts []string
	st := term.Structured
	if st.Domain != "" {
		parts = append(parts, "domain="+st.Domain)
	}
	if st.PublisherId != "" {
		parts = append(parts, "publisherId="+st.PublisherId)
	}
	if st.Relationship != "" {
		parts = append(parts, "relationship="+st.Relationship)
	}
	if st.TagId != "" {
		parts = append(parts, "tagId="+st.TagId)
	}
	return strings.Join(parts, ",")
}

// runSearch matches query against entries, producing per-term match lists
// (for UI coloring) and a deduplicated union list capped at resultCap.
func runSearch(query models.SearchQuery, entries []entry, resultCap int) models.SearchResults {
	groups := buildGroups(query)

	terms := make([]string, len(query.Terms))
	perTerm := make([][]models.TermMatch, len(query.Terms))
	perTermCount := make([]int, len(query.Terms))
	for i, t := range query.Terms {
		terms[i] = termLabel(t)
	}

	var union []models.TermMatch
	totalUnion := 0

	for _, e := range entries {
		// Per-term tracking: does each individual term match this line? A
		// structured term's group is a single AND of several field
		// predicates, so it must count once per matching line, not once per
		// matching field; the free-text group holds one predicate per
		// free-text term, each counted independently.
		for _, g := range groups {
			if len(g.termIndices) == 1 {
				if g.matches(e) {
					termIdx := g.termIndices[0]
					perTermCount[termIdx]++
					if len(perTerm[termIdx]) < resultCap {
						perTerm[termIdx] = append(perTerm[termIdx], models.TermMatch{
							TermIndex:  termIdx,
							LineNumber: e.lineNumber,
							Line:       e.raw,
						})
					}
				}
				continue
			}
			for pi, pred := range g.predicates {
				if pred(e) {
					termIdx := g.termIndices[pi]
					perTermCount[termIdx]++
					if len(perTerm[termIdx]) < resultCap {
						perTerm[termIdx] = append(perTerm[termIdx], models.TermMatch{
							TermIndex:  termIdx,
							LineNumber: e.lineNumber,
							Line:       e.raw,
						})
					}
				}
			}
		}

		// Union: does any full group (AND of its predicates) match?
		matched := false
		matchedTermIdx := -1
		for _, g := range groups {
			if g.matches(e) {
				matched = true
				matchedTermIdx = g.termIndices[0]
				break
			}
		}
		if matched {
			totalUnion++
			if len(union) < resultCap {
				union = append(union, models.TermMatch{
					TermIndex:  matchedTermIdx,
					LineNumber: e.lineNumber,
					Line:       e.raw,
				})
			}
		}
	}

	return models.SearchResults{
		Terms:        terms,
		PerTerm:      perTerm,
		PerTermCount: perTermCount,
		Union:        union,
		UnionCount:   totalUnion,
		Cap:          resultCap,
		Truncated:    totalUnion > resultCap,
	}
}
