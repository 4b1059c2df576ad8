package search

import "strings"

// ParseVicinity extracts city, state and country from a comma separated
// address, reading components from the end: "..., city, state, country".
// Two components are read as "street, city".
func ParseVicinity(vicinity string) (city, state, country string) {
	var parts []string
	for _, p := range strings.Split(vicinity, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	switch n := len(parts); {
	case n >= 3:
		return parts[n-3], parts[n-2], parts[n-1]
	case n == 2:
		return parts[1], "", ""
	default:
		return "", "", ""
	}
}
