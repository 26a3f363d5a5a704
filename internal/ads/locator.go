package ads

import (
	"fmt"
	"regexp"
	"strings"
)

// locatorQuery is the outcome of classifying a locator: either a bibcode
// recognized locally, or a search query to run against the API.
type locatorQuery struct {
	bibcode string
	q       string
}

// Bibcodes are exactly 19 characters and open with a four-digit year.
var bibcodeRe = regexp.MustCompile(`^\d{4}[A-Za-z.&]{5}[\w.]{4}[ELPQ-Z\d.][\d.]{4}[A-Z.]$`)

// Old-style arXiv identifiers like astro-ph/0001234, new-style like
// 2301.00001.
var (
	arxivOldRe = regexp.MustCompile(`^[a-z-]+(\.[A-Z]{2})?/\d{7}$`)
	arxivNewRe = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
)

// classifyLocator decides what kind of citation a locator is and how to
// resolve it.
func classifyLocator(locator string) (locatorQuery, error) {
	loc := strings.TrimSpace(locator)
	if loc == "" {
		return locatorQuery{}, fmt.Errorf("empty locator")
	}

	switch {
	case bibcodeRe.MatchString(loc):
		return locatorQuery{bibcode: loc}, nil

	case strings.HasPrefix(strings.ToLower(loc), "arxiv:"):
		id := loc[len("arxiv:"):]
		return locatorQuery{q: fmt.Sprintf("identifier:%q", "arXiv:"+id)}, nil

	case arxivOldRe.MatchString(loc) || arxivNewRe.MatchString(loc):
		return locatorQuery{q: fmt.Sprintf("identifier:%q", "arXiv:"+loc)}, nil

	case strings.HasPrefix(strings.ToLower(loc), "doi:"):
		return locatorQuery{q: fmt.Sprintf("doi:%q", loc[len("doi:"):])}, nil

	case strings.HasPrefix(loc, "10.") && strings.Contains(loc, "/"):
		return locatorQuery{q: fmt.Sprintf("doi:%q", loc)}, nil

	case strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://"):
		return classifyURL(loc)

	default:
		// Free text falls through to a general identifier search.
		return locatorQuery{q: fmt.Sprintf("identifier:%q", loc)}, nil
	}
}

// classifyURL picks identifiers out of known citation URLs.
func classifyURL(loc string) (locatorQuery, error) {
	trimmed := strings.TrimSuffix(loc, "/")

	// ADS abstract pages embed the bibcode: .../abs/<bibcode>[/abstract]
	if i := strings.Index(trimmed, "/abs/"); i >= 0 {
		rest := trimmed[i+len("/abs/"):]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			rest = rest[:j]
		}
		// Bibcodes in URLs escape the & of journal abbreviations.
		candidate := strings.ReplaceAll(rest, "%26", "&")
		if bibcodeRe.MatchString(candidate) {
			return locatorQuery{bibcode: candidate}, nil
		}
	}

	if i := strings.Index(trimmed, "arxiv.org/abs/"); i >= 0 {
		id := trimmed[i+len("arxiv.org/abs/"):]
		return locatorQuery{q: fmt.Sprintf("identifier:%q", "arXiv:"+id)}, nil
	}

	if i := strings.Index(trimmed, "doi.org/"); i >= 0 {
		return locatorQuery{q: fmt.Sprintf("doi:%q", trimmed[i+len("doi.org/"):])}, nil
	}

	return locatorQuery{}, fmt.Errorf("unrecognized citation url %q", loc)
}
