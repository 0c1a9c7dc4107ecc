package prompts

import (
	"fmt"
	"strings"
)

// CategoryContext is one category of the running taxonomy shown to the LLM.
type CategoryContext struct {
	Category      string
	Subcategories []string
}

// LineContext carries the descriptive fields of one purchase-order line.
// Empty fields are omitted from the prompt.
type LineContext struct {
	OrderNo          string
	LineNo           string
	LineType         string
	OrderDescription string
	LineDescription  string
	Supplier         string
}

// BuildCatalogClassificationPrompt creates the prompt for one classification batch.
// It includes the current taxonomy, the batch lines, reuse rules and the JSON
// response format for assignments, aliases and new_categories.
func BuildCatalogClassificationPrompt(taxonomy []CategoryContext, lines []LineContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Procurement Spend Classification\n\n")
	prompt.WriteString("Classify each purchase-order line below into a spend category and subcategory.\n\n")

	prompt.WriteString("## Current Taxonomy\n\n")
	if len(taxonomy) == 0 {
		prompt.WriteString("(empty: no categories exist yet, propose the first ones)\n\n")
	} else {
		for _, c := range taxonomy {
			prompt.WriteString(fmt.Sprintf("- %s: %s\n", c.Category, strings.Join(c.Subcategories, "; ")))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Lines\n\n")
	for _, l := range lines {
		prompt.WriteString(fmt.Sprintf("- order_no=%q line_no=%q", l.OrderNo, l.LineNo))
		writeField(&prompt, "type", l.LineType)
		writeField(&prompt, "order", l.OrderDescription)
		writeField(&prompt, "line", l.LineDescription)
		writeField(&prompt, "supplier", l.Supplier)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("- Reuse an existing category and subcategory whenever one applies. Use the exact spelling shown above.\n")
	prompt.WriteString("- Only propose a new category or subcategory when no existing one fits, and give a short justification.\n")
	prompt.WriteString("- If two existing names mean the same thing, report an alias from the duplicate to the name to keep.\n")
	prompt.WriteString("- Use the same language as the line descriptions for category names.\n")
	prompt.WriteString("- Return exactly one assignment per line, copying order_no and line_no verbatim.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `assignments`: one entry per line\n")
	prompt.WriteString("  - `order_no`, `line_no`: identifiers from the line list\n")
	prompt.WriteString("  - `category`, `subcategory`: the classification\n")
	prompt.WriteString("- `aliases`: array of merges (may be empty)\n")
	prompt.WriteString("  - `from`: {`category`, `subcategory`} to retire\n")
	prompt.WriteString("  - `to`: {`category`, `subcategory`} to keep\n")
	prompt.WriteString("- `new_categories`: array of proposals (may be empty)\n")
	prompt.WriteString("  - `category`, `subcategories`, `justification`\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "assignments": [
    {"order_no": "4500012", "line_no": "10", "category": "IT", "subcategory": "Hardware"}
  ],
  "aliases": [
    {"from": {"category": "Tecnologia", "subcategory": "Equipos"}, "to": {"category": "IT", "subcategory": "Hardware"}}
  ],
  "new_categories": [
    {"category": "IT", "subcategories": ["Hardware"], "justification": "Laptops and monitors do not fit any existing category."}
  ]
}
`)
	prompt.WriteString("```\n\n")

	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildCatalogClassificationSystemMessage returns the system message for the LLM.
func BuildCatalogClassificationSystemMessage() string {
	return `You are a procurement spend analyst. You organise purchase-order lines into a compact, stable category taxonomy and avoid creating near-duplicate category names.`
}

func writeField(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		b.WriteString(fmt.Sprintf(" %s=%q", label, value))
	}
}
