package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

// RoleScore is the fit of one table for one role.
type RoleScore struct {
	TableName   string
	Resolved    map[string]string
	Score       int
	Descriptive bool
}

func (s RoleScore) has(field string) bool {
	return s.Resolved[field] != ""
}

func (s RoleScore) assignment(role models.Role) *models.RoleAssignment {
	return &models.RoleAssignment{Role: role, TableName: s.TableName, ResolvedColumns: s.Resolved, Score: s.Score}
}

// RoleAssignments are the tables chosen for one build. LineDetails may be nil.
type RoleAssignments struct {
	PurchaseOrders *models.RoleAssignment
	Disbursements  *models.RoleAssignment
	LineDetails    *models.RoleAssignment
}

// Tables maps each assigned role to its table.
func (a *RoleAssignments) Tables() map[models.Role]string {
	tables := make(map[models.Role]string)
	for _, ra := range a.list() {
		tables[ra.Role] = ra.TableName
	}
	return tables
}

// ResolvedColumns maps each assigned role to its logical field columns.
func (a *RoleAssignments) ResolvedColumns() map[models.Role]map[string]string {
	cols := make(map[models.Role]map[string]string)
	for _, ra := range a.list() {
		cols[ra.Role] = ra.ResolvedColumns
	}
	return cols
}

func (a *RoleAssignments) list() []*models.RoleAssignment {
	var out []*models.RoleAssignment
	for _, ra := range []*models.RoleAssignment{a.PurchaseOrders, a.Disbursements, a.LineDetails} {
		if ra != nil {
			out = append(out, ra)
		}
	}
	return out
}

// ScoreTable scores one table against one role: +2 per resolved field,
// +2 more for an amount and +1 for a payment date on disbursements, and +1
// for any descriptive column on purchase orders.
func ScoreTable(table string, columns []models.ColumnSchema, role models.Role, aliases *AliasSet) RoleScore {
	s := RoleScore{TableName: table, Resolved: ResolveFields(columns, aliases.Fields(role))}
	s.Score = 2 * len(s.Resolved)

	for _, f := range models.DescriptiveFields {
		if s.has(f) {
			s.Descriptive = true
		}
	}

	switch role {
	case models.RoleDisbursements:
		if s.has(models.FieldAmount) {
			s.Score += 2
		}
		if s.has(models.FieldPaymentDate) {
			s.Score++
		}
	case models.RolePurchaseOrders:
		if s.Descriptive {
			s.Score++
		}
	}
	return s
}

// AssignRoles scores every table for every role and assigns greedily:
// purchase orders first, then disbursements, then line details, never
// reusing a table. Purchase-order candidates rank by descriptive presence
// before score, so a table without descriptive columns never wins that role
// over one with them.
func AssignRoles(schema map[string][]models.ColumnSchema, aliases *AliasSet) (*RoleAssignments, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("%w: no tables uploaded", apperrors.ErrRoleUnresolved)
	}

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	claimed := make(map[string]bool)
	candidates := func(role models.Role) []RoleScore {
		var scores []RoleScore
		for _, name := range names {
			if !claimed[name] {
				scores = append(scores, ScoreTable(name, schema[name], role, aliases))
			}
		}
		sort.SliceStable(scores, func(i, j int) bool {
			a, b := scores[i], scores[j]
			if role == models.RolePurchaseOrders && a.Descriptive != b.Descriptive {
				return a.Descriptive
			}
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.TableName < b.TableName
		})
		return scores
	}

	result := &RoleAssignments{}

	po := candidates(models.RolePurchaseOrders)[0]
	if missing := missingFields(po, requiredRoleFields[models.RolePurchaseOrders]); len(missing) > 0 {
		return nil, fmt.Errorf("%w: purchase orders table %q has no %s column",
			apperrors.ErrRoleUnresolved, po.TableName, strings.Join(missing, ", "))
	}
	if !po.Descriptive {
		return nil, fmt.Errorf("%w: purchase orders table %q has none of %s",
			apperrors.ErrNoDescriptiveColumn, po.TableName, strings.Join(models.DescriptiveFields, ", "))
	}
	result.PurchaseOrders = po.assignment(models.RolePurchaseOrders)
	claimed[po.TableName] = true

	disb := candidates(models.RoleDisbursements)
	if len(disb) == 0 {
		return nil, fmt.Errorf("%w: no table left for disbursements", apperrors.ErrRoleUnresolved)
	}
	if missing := missingFields(disb[0], requiredRoleFields[models.RoleDisbursements]); len(missing) > 0 {
		return nil, fmt.Errorf("%w: disbursements table %q has no %s column",
			apperrors.ErrRoleUnresolved, disb[0].TableName, strings.Join(missing, ", "))
	}
	result.Disbursements = disb[0].assignment(models.RoleDisbursements)
	claimed[disb[0].TableName] = true

	for _, s := range candidates(models.RoleLineDetails) {
		if s.has(models.FieldOrderNo) {
			result.LineDetails = s.assignment(models.RoleLineDetails)
			break
		}
	}

	return result, nil
}

func missingFields(s RoleScore, required []string) []string {
	var missing []string
	for _, f := range required {
		if !s.has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}
