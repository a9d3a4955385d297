// Package prompts holds the named template registry the generator renders
// answers through. Templates carry exactly two placeholders, {context} and
// {query}; each intent maps to a default template.
package prompts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/alti-global/prism/internal/models"
)

// Descriptor describes a registered prompt for the listing endpoint.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UseCase     string `json:"use_case"`
	Audience    string `json:"audience"`
}

type promptEntry struct {
	Descriptor
	template string
}

// Registry is an immutable set of named prompt templates.
type Registry struct {
	entries map[string]promptEntry
	// intentDefaults maps an intent to its default template name.
	intentDefaults map[models.Intent]string
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// NewRegistry builds a registry from entries, validating each template.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		entries:        make(map[string]promptEntry),
		intentDefaults: defaultIntentPrompts(),
	}
	for _, e := range builtinPrompts() {
		if err := validateTemplate(e.Name, e.template); err != nil {
			return nil, err
		}
		r.entries[e.Name] = e
	}
	for intent, name := range r.intentDefaults {
		if _, ok := r.entries[name]; !ok {
			return nil, fmt.Errorf("intent %s maps to unregistered prompt %q", intent, name)
		}
	}
	return r, nil
}

// validateTemplate rejects templates with unknown placeholders or missing
// required ones.
func validateTemplate(name, template string) error {
	found := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		switch m[1] {
		case "context", "query":
			found[m[1]] = true
		default:
			return fmt.Errorf("prompt %q has unknown placeholder {%s}", name, m[1])
		}
	}
	if !found["context"] || !found["query"] {
		return fmt.Errorf("prompt %q must contain both {context} and {query}", name)
	}
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Render fills the named template with context and query text.
func (r *Registry) Render(name, context, query string) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	out := strings.ReplaceAll(e.template, "{context}", context)
	out = strings.ReplaceAll(out, "{query}", query)
	return out, nil
}

// ForIntent returns the default template name for an intent.
func (r *Registry) ForIntent(intent models.Intent) string {
	if name, ok := r.intentDefaults[intent]; ok {
		return name
	}
	return r.intentDefaults[models.IntentGeneral]
}

// Resolve picks the template for a query: an explicit valid prompt_name wins,
// otherwise the intent default.
func (r *Registry) Resolve(requested string, intent models.Intent) string {
	if requested != "" && r.Has(requested) {
		return requested
	}
	return r.ForIntent(intent)
}

// List returns descriptors for every registered prompt, sorted by name.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Descriptor)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func defaultIntentPrompts() map[models.Intent]string {
	return map[models.Intent]string{
		models.IntentArchetype:  "archetype_overview_cited",
		models.IntentPortfolio:  "portfolio_interpreter_cited",
		models.IntentRisk:       "risk_metrics_interpreter_cited",
		models.IntentMonteCarlo: "monte_carlo_interpreter_cited",
		models.IntentESG:        "esg_analysis_cited",
		models.IntentGeneral:    "general_cited",
	}
}
