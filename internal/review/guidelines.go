package review

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Guidelines is a review guidelines pack loaded from --guidelines.
type Guidelines struct {
	Focus    []string        `json:"focus,omitempty"`
	Required []RequiredCheck `json:"required,omitempty"`
}

// RequiredCheck is a policy check that should always be evaluated.
type RequiredCheck struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LoadGuidelines loads a guidelines file from disk. Returns nil and nil error
// if path is empty.
func LoadGuidelines(path string) (*Guidelines, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading guidelines file: %w", err)
	}
	var g Guidelines
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing guidelines file: %w", err)
	}
	for i, req := range g.Required {
		if req.ID == "" || req.Text == "" {
			return nil, fmt.Errorf("guidelines file: required check %d needs id and text", i)
		}
	}
	return &g, nil
}

// PromptSection returns additional review instructions derived from g. A nil
// receiver yields an empty section.
func (g *Guidelines) PromptSection() string {
	if g == nil {
		return ""
	}

	var b strings.Builder

	if len(g.Focus) > 0 {
		fmt.Fprintf(&b, "\nFocus areas: %s. Prioritize feedback in these areas.\n",
			strings.Join(g.Focus, ", "))
	}

	if len(g.Required) > 0 {
		b.WriteString("\nRequired checks (always evaluate these):\n")
		for _, req := range g.Required {
			fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
		}
	}

	return b.String()
}
