package services

import (
	"strings"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/normalize"
)

// foldedColumn caches the folded forms a column is matched on.
type foldedColumn struct {
	name  string
	label string
	norm  string
}

func foldColumns(columns []models.ColumnSchema) []foldedColumn {
	folded := make([]foldedColumn, len(columns))
	for i, c := range columns {
		label := c.OriginalLabel
		if label == "" {
			label = c.Name
		}
		folded[i] = foldedColumn{name: c.Name, label: normalize.Fold(label), norm: normalize.Fold(c.Name)}
	}
	return folded
}

// ResolveColumn finds the physical column best matching a prioritized alias
// list. Matching is tier-major: every alias is tried for an exact match
// against original labels and then normalized names before any alias is
// tried for containment, first in labels and then in normalized names.
// Containment is on whole words, so "tipo" never matches alias "po".
func ResolveColumn(columns []models.ColumnSchema, aliases []string) (string, bool) {
	return resolveFolded(foldColumns(columns), foldAliases(aliases), nil)
}

func foldAliases(aliases []string) []string {
	folded := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if f := normalize.Fold(a); f != "" {
			folded = append(folded, f)
		}
	}
	return folded
}

func resolveFolded(columns []foldedColumn, aliases []string, claimed map[string]bool) (string, bool) {
	tiers := []func(c foldedColumn, alias string) bool{
		func(c foldedColumn, alias string) bool { return c.label == alias },
		func(c foldedColumn, alias string) bool { return c.norm == alias },
		func(c foldedColumn, alias string) bool { return containsWords(c.label, alias) },
		func(c foldedColumn, alias string) bool { return containsWords(c.norm, alias) },
	}

	// Exact tiers run together per alias, as do the containment tiers.
	for _, group := range [][]func(foldedColumn, string) bool{tiers[:2], tiers[2:]} {
		for _, alias := range aliases {
			for _, match := range group {
				for _, c := range columns {
					if claimed[c.name] {
						continue
					}
					if match(c, alias) {
						return c.name, true
					}
				}
			}
		}
	}
	return "", false
}

func containsWords(haystack, needle string) bool {
	if haystack == "" || needle == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// ResolveFields resolves every field of a role against one table. A column
// is claimed by the first field that resolves to it.
func ResolveFields(columns []models.ColumnSchema, fields []AliasField) map[string]string {
	folded := foldColumns(columns)
	claimed := make(map[string]bool)
	resolved := make(map[string]string)
	for _, f := range fields {
		if col, ok := resolveFolded(folded, f.Aliases, claimed); ok {
			resolved[f.Field] = col
			claimed[col] = true
		}
	}
	return resolved
}
