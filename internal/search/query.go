package search

import "strings"

// DefaultSeparator splits "coffee shops in Austin TX" into term and location.
const DefaultSeparator = "in"

// Decomposed is a query split into a search term and an optional location phrase.
type Decomposed struct {
	Term        string
	Location    string
	HasLocation bool
}

// Decompose splits query on the first standalone, case-insensitive occurrence
// of separator. Everything before it is the term, everything after the location.
// A separator with nothing on one side leaves the whole query as the term.
func Decompose(query, separator string) Decomposed {
	query = strings.TrimSpace(query)
	if separator == "" {
		separator = DefaultSeparator
	}

	fields := strings.Fields(query)
	for i, f := range fields {
		if !strings.EqualFold(f, separator) {
			continue
		}
		if i == 0 || i == len(fields)-1 {
			break
		}
		return Decomposed{
			Term:        strings.Join(fields[:i], " "),
			Location:    strings.Join(fields[i+1:], " "),
			HasLocation: true,
		}
	}

	return Decomposed{Term: strings.Join(fields, " ")}
}
