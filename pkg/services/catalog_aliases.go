package services

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/normalize"
)

//go:embed catalog_aliases.yaml
var defaultAliasesYAML []byte

// AliasField is one logical field and its header label variants in priority order.
type AliasField struct {
	Field   string   `yaml:"field"`
	Aliases []string `yaml:"aliases"`
}

// AliasSet holds the label variants of every role.
type AliasSet struct {
	Roles map[models.Role][]AliasField `yaml:"roles"`
}

var requiredRoleFields = map[models.Role][]string{
	models.RolePurchaseOrders: {models.FieldOrderNo, models.FieldLineNo},
	models.RoleDisbursements:  {models.FieldOrderNo, models.FieldLineNo, models.FieldAmount, models.FieldPaymentDate},
	models.RoleLineDetails:    {models.FieldOrderNo},
}

// ParseAliasSet decodes an alias document and checks every role declares
// its mandatory fields. Aliases are stored folded.
func ParseAliasSet(data []byte) (*AliasSet, error) {
	var set AliasSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse aliases: %w", err)
	}

	for role, required := range requiredRoleFields {
		fields, ok := set.Roles[role]
		if !ok {
			return nil, fmt.Errorf("aliases: role %s missing", role)
		}
		for _, name := range required {
			if len(set.Aliases(role, name)) == 0 {
				return nil, fmt.Errorf("aliases: role %s has no aliases for %s", role, name)
			}
		}
		for i := range fields {
			folded := make([]string, 0, len(fields[i].Aliases))
			for _, a := range fields[i].Aliases {
				if f := normalize.Fold(a); f != "" {
					folded = append(folded, f)
				}
			}
			fields[i].Aliases = folded
		}
	}
	return &set, nil
}

var (
	defaultAliases     *AliasSet
	defaultAliasesOnce sync.Once
)

// DefaultAliasSet returns the embedded alias document.
func DefaultAliasSet() *AliasSet {
	defaultAliasesOnce.Do(func() {
		set, err := ParseAliasSet(defaultAliasesYAML)
		if err != nil {
			panic(err)
		}
		defaultAliases = set
	})
	return defaultAliases
}

// Fields returns the logical fields of a role in declaration order.
func (s *AliasSet) Fields(role models.Role) []AliasField {
	return s.Roles[role]
}

// Aliases returns the label variants of one field of a role.
func (s *AliasSet) Aliases(role models.Role, field string) []string {
	for _, f := range s.Roles[role] {
		if f.Field == field {
			return f.Aliases
		}
	}
	return nil
}
