package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-spend/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-spend/pkg/llm"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

// ResponseKind tags how much of a classification response could be used.
type ResponseKind string

const (
	// ResponseValid: every field present and every assignment usable.
	ResponseValid ResponseKind = "valid"
	// ResponsePartial: optional fields missing or some entries dropped; apply what is present.
	ResponsePartial ResponseKind = "partial"
	// ResponseUnparsable: no usable assignments; the batch falls back.
	ResponseUnparsable ResponseKind = "unparsable"
)

// ProposedAssignment is one line classification as returned by the LLM.
type ProposedAssignment struct {
	OrderNo     string
	LineNo      string
	Category    string
	Subcategory string
}

// AliasMerge asks for From to be treated as To.
type AliasMerge struct {
	From models.CategoryPair
	To   models.CategoryPair
}

// CategoryProposal is a new category the LLM justified.
type CategoryProposal struct {
	Category      string
	Subcategories []string
	Justification string
}

// ClassificationResponse is the validated form of one batch response.
type ClassificationResponse struct {
	Kind          ResponseKind
	Assignments   []ProposedAssignment
	Aliases       []AliasMerge
	NewCategories []CategoryProposal
	// Dropped counts assignments rejected for missing or unknown identifiers
	// or an empty category.
	Dropped int
	Issues  []string
	Err     error
}

type rawPair struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

type rawAssignment struct {
	OrderNo     jsonutil.FlexibleString `json:"order_no"`
	LineNo      jsonutil.FlexibleString `json:"line_no"`
	Category    string                  `json:"category"`
	Subcategory string                  `json:"subcategory"`
}

type rawAlias struct {
	From rawPair `json:"from"`
	To   rawPair `json:"to"`
}

type rawCategory struct {
	Category      string   `json:"category"`
	Subcategories []string `json:"subcategories"`
	Justification string   `json:"justification"`
}

// ParseClassificationResponse validates an LLM reply. inBatch reports whether
// an (order_no, line_no) pair belongs to the batch; nil accepts every pair.
// A reply without a usable assignments array is unparsable.
func ParseClassificationResponse(content string, inBatch func(orderNo, lineNo string) bool) ClassificationResponse {
	unparsable := func(err error) ClassificationResponse {
		return ClassificationResponse{Kind: ResponseUnparsable, Err: err}
	}

	jsonStr, err := llm.ExtractJSONObject(content)
	if err != nil {
		return unparsable(err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &top); err != nil {
		return unparsable(fmt.Errorf("response is not a JSON object: %w", err))
	}

	rawAssignments, ok := top["assignments"]
	if !ok {
		return unparsable(errors.New("response has no assignments"))
	}
	var assignments []json.RawMessage
	if err := json.Unmarshal(rawAssignments, &assignments); err != nil {
		return unparsable(fmt.Errorf("assignments is not an array: %w", err))
	}

	resp := ClassificationResponse{Kind: ResponseValid}
	issue := func(format string, args ...any) {
		resp.Issues = append(resp.Issues, fmt.Sprintf(format, args...))
	}

	seen := make(map[[2]string]bool)
	for i, raw := range assignments {
		var a rawAssignment
		if err := json.Unmarshal(raw, &a); err != nil {
			resp.Dropped++
			issue("assignment %d malformed: %v", i, err)
			continue
		}
		p := ProposedAssignment{
			OrderNo:     a.OrderNo.String(),
			LineNo:      a.LineNo.String(),
			Category:    strings.TrimSpace(a.Category),
			Subcategory: strings.TrimSpace(a.Subcategory),
		}
		key := [2]string{p.OrderNo, p.LineNo}
		switch {
		case p.OrderNo == "" || p.LineNo == "":
			issue("assignment %d missing identifiers", i)
		case p.Category == "" || p.Subcategory == "":
			issue("assignment %s/%s has empty category", p.OrderNo, p.LineNo)
		case inBatch != nil && !inBatch(p.OrderNo, p.LineNo):
			issue("assignment %s/%s not in batch", p.OrderNo, p.LineNo)
		case seen[key]:
			issue("assignment %s/%s duplicated", p.OrderNo, p.LineNo)
		default:
			seen[key] = true
			resp.Assignments = append(resp.Assignments, p)
			continue
		}
		resp.Dropped++
	}

	if raw, ok := top["aliases"]; ok {
		var aliases []rawAlias
		if err := json.Unmarshal(raw, &aliases); err != nil {
			issue("aliases ignored: %v", err)
		}
		for _, a := range aliases {
			m := AliasMerge{From: trimPair(a.From), To: trimPair(a.To)}
			if !completePair(m.From) || !completePair(m.To) {
				issue("incomplete alias %v -> %v ignored", m.From, m.To)
				continue
			}
			resp.Aliases = append(resp.Aliases, m)
		}
	} else {
		issue("aliases missing")
	}

	if raw, ok := top["new_categories"]; ok {
		var cats []rawCategory
		if err := json.Unmarshal(raw, &cats); err != nil {
			issue("new_categories ignored: %v", err)
		}
		for _, c := range cats {
			name := strings.TrimSpace(c.Category)
			if name == "" {
				issue("unnamed category proposal ignored")
				continue
			}
			prop := CategoryProposal{Category: name, Justification: strings.TrimSpace(c.Justification)}
			for _, s := range c.Subcategories {
				if s = strings.TrimSpace(s); s != "" {
					prop.Subcategories = append(prop.Subcategories, s)
				}
			}
			resp.NewCategories = append(resp.NewCategories, prop)
		}
	} else {
		issue("new_categories missing")
	}

	if len(resp.Issues) > 0 {
		resp.Kind = ResponsePartial
	}
	if len(resp.Assignments) == 0 && len(assignments) > 0 {
		resp.Kind = ResponseUnparsable
		resp.Err = fmt.Errorf("none of %d assignments usable", len(assignments))
	}
	return resp
}

func trimPair(p rawPair) models.CategoryPair {
	return models.CategoryPair{Category: strings.TrimSpace(p.Category), Subcategory: strings.TrimSpace(p.Subcategory)}
}

func completePair(p models.CategoryPair) bool {
	return p.Category != "" && p.Subcategory != ""
}
