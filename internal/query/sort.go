package query

import (
	"strings"

	"github.com/noah-isme/krs-admin-api/internal/models"
)

// OrderBy resolves the ordering for a listing. The structured sorts list
// wins when it yields at least one allow-listed entry, applied in the given
// order. Otherwise the legacy sort_by/sort_dir pair is used, with the
// default column appended descending as a stable tiebreaker. The result is
// never empty.
func OrderBy(sorts []models.SortRule, legacyBy, legacyDir string, sortable map[string]string, defaultColumn string) string {
	var parts []string
	for _, s := range sorts {
		column, ok := sortable[s.Field]
		if !ok {
			continue
		}
		parts = append(parts, column+" "+direction(s.Dir, "ASC"))
	}

	if len(parts) == 0 {
		column, ok := sortable[legacyBy]
		if !ok {
			column = defaultColumn
		}
		parts = append(parts, column+" "+direction(legacyDir, "DESC"))
		if column != defaultColumn {
			parts = append(parts, defaultColumn+" DESC")
		}
	}

	return " ORDER BY " + strings.Join(parts, ", ")
}

func direction(dir, fallback string) string {
	switch strings.ToLower(dir) {
	case "asc":
		return "ASC"
	case "desc":
		return "DESC"
	}
	return fallback
}
