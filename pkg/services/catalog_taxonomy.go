package services

import (
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/normalize"
)

// maxAliasHops bounds alias chain resolution.
const maxAliasHops = 8

type canonicalCategory struct {
	name      string
	subs      []string
	subByFold map[string]string
}

// canonicalTaxonomy is the running taxonomy of one build. Names match case-
// and accent-insensitively and keep the spelling they were first seen with.
// Entries are never removed; aliases redirect later lookups.
type canonicalTaxonomy struct {
	categories []*canonicalCategory
	byFold     map[string]*canonicalCategory
	aliases    map[[2]string]models.CategoryPair
}

func newCanonicalTaxonomy() *canonicalTaxonomy {
	return &canonicalTaxonomy{
		byFold:  make(map[string]*canonicalCategory),
		aliases: make(map[[2]string]models.CategoryPair),
	}
}

func pairKey(p models.CategoryPair) [2]string {
	return [2]string{normalize.Fold(p.Category), normalize.Fold(p.Subcategory)}
}

func (t *canonicalTaxonomy) empty() bool {
	return len(t.categories) == 0
}

// lookup returns the existing spelling of p, if known.
func (t *canonicalTaxonomy) lookup(p models.CategoryPair) (models.CategoryPair, bool) {
	cat, ok := t.byFold[normalize.Fold(p.Category)]
	if !ok {
		return models.CategoryPair{}, false
	}
	sub, ok := cat.subByFold[normalize.Fold(p.Subcategory)]
	if !ok {
		return models.CategoryPair{}, false
	}
	return models.CategoryPair{Category: cat.name, Subcategory: sub}, true
}

// add ensures p is present and returns its canonical spelling.
func (t *canonicalTaxonomy) add(p models.CategoryPair) models.CategoryPair {
	catKey := normalize.Fold(p.Category)
	cat, ok := t.byFold[catKey]
	if !ok {
		cat = &canonicalCategory{name: p.Category, subByFold: make(map[string]string)}
		t.byFold[catKey] = cat
		t.categories = append(t.categories, cat)
	}
	subKey := normalize.Fold(p.Subcategory)
	sub, ok := cat.subByFold[subKey]
	if !ok {
		sub = p.Subcategory
		cat.subByFold[subKey] = sub
		cat.subs = append(cat.subs, sub)
	}
	return models.CategoryPair{Category: cat.name, Subcategory: sub}
}

// addAlias makes later references to from resolve to to. An alias that
// would loop back onto itself is ignored.
func (t *canonicalTaxonomy) addAlias(from, to models.CategoryPair) bool {
	target := t.resolve(to)
	if pairKey(from) == pairKey(target) {
		return false
	}
	t.aliases[pairKey(from)] = target
	return true
}

// resolve follows aliases, then adds the pair if it is unknown.
func (t *canonicalTaxonomy) resolve(p models.CategoryPair) models.CategoryPair {
	for hops := 0; hops < maxAliasHops; hops++ {
		next, ok := t.aliases[pairKey(p)]
		if !ok {
			break
		}
		p = next
	}
	if existing, ok := t.lookup(p); ok {
		return existing
	}
	return t.add(p)
}

func (t *canonicalTaxonomy) snapshot() models.Taxonomy {
	tax := make(models.Taxonomy, 0, len(t.categories))
	for _, c := range t.categories {
		tax = append(tax, models.TaxonomyEntry{Category: c.name, Subcategories: append([]string(nil), c.subs...)})
	}
	return tax
}
