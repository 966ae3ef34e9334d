package mathagent

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/xyz/template"
)

// Names of the embedded prompt templates.
const (
	TemplateSolution        = "solution"
	TemplateSolutionConcise = "solution_concise"
	TemplateAnswerOnly      = "answer_only"
	TemplateEvaluation      = "evaluation"
)

//go:embed prompts.yaml
var promptsYAML []byte

var loadTemplates = sync.OnceValues(func() (map[string]template.Template, error) {
	return template.ParseYAML(promptsYAML)
})

// Templates returns the embedded prompt templates by name.
func Templates() (map[string]template.Template, error) {
	return loadTemplates()
}

// Prompt returns one embedded template.
func Prompt(name string) (template.Template, error) {
	all, err := loadTemplates()
	if err != nil {
		return template.Template{}, err
	}

	t, ok := all[name]
	if !ok {
		return template.Template{}, fmt.Errorf("unknown prompt template %q (available: %v)", name, TemplateNames())
	}

	return t, nil
}

// TemplateNames lists the embedded template names in sorted order.
func TemplateNames() []string {
	all, err := loadTemplates()
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
