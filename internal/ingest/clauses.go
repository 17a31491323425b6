package ingest

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// ClauseVariants returns the ordered list of filter-clause formulations for
// one logical region filter. Upstream casing of state and district names is
// inconsistent across layers, so the run tries exact case, upper case, and
// title case before falling back to an unfiltered catch-all. Duplicate
// formulations (e.g. when the input is already upper case) are collapsed,
// preserving order.
func ClauseVariants(state, district string) []string {
	variants := []string{
		buildClause(state, district),
		buildClause(strings.ToUpper(state), strings.ToUpper(district)),
		buildClause(titleCaser.String(strings.ToLower(state)), titleCaser.String(strings.ToLower(district))),
		"1=1",
	}

	seen := make(map[string]bool, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func buildClause(state, district string) string {
	clause := fmt.Sprintf("state_name='%s'", escapeSQL(state))
	if district != "" {
		clause += fmt.Sprintf(" AND district_name='%s'", escapeSQL(district))
	}
	return clause
}

// escapeSQL doubles single quotes per the ArcGIS where-clause convention.
func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
