// Package tmpl is the template engine of spec §4.3: pure substitution
// over a closed set of placeholder tokens. It is deliberately not built
// on text/template — the spec requires rejecting any {...}-shaped token
// left over after substitution, which calls for a literal-token scan
// rather than Go template's "undefined key" semantics over a different
// delimiter syntax.
package tmpl

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/runpath"
	"github.com/StevenZev/ExpressDiff/internal/stage"
)

const defaultAdapterType = "NexteraPE-PE"

// knownPlaceholderPattern matches only the closed set of tokens this
// engine substitutes. It is deliberately an explicit alternation, not a
// generic \{[A-Za-z0-9_]+\} pattern: the shipped templates use bash
// parameter expansions like ${sample}, and a generic pattern would both
// match the {sample} substring inside ${sample} and, worse, never be
// able to tell it apart from a genuine unknown placeholder afterward.
var knownPlaceholderPattern = regexp.MustCompile(`\{(RUN_ID|ACCOUNT|BASE_DIR|RUN_DIR|ADAPTER_TYPE)\}`)

// anyBracePattern is used only for the post-substitution leftover check.
// It matches an optional leading "$" so that check can tell a bash
// parameter expansion (${sample}) apart from a bare, unrecognized
// placeholder ({sample}) without requiring lookbehind, which RE2 (and
// thus regexp) does not support.
var anyBracePattern = regexp.MustCompile(`\$?\{[A-Za-z0-9_]+\}`)

// Engine renders stage templates into executable scripts.
type Engine struct {
	paths runpath.Paths
}

// New constructs an Engine rooted at paths.
func New(paths runpath.Paths) *Engine {
	return &Engine{paths: paths}
}

// Generate loads install_dir/slurm_templates/<stage>.template, substitutes
// the closed placeholder set, and writes the result to
// work_dir/generated_slurm/<stage>_<run_id>.script with owner-executable
// permission, overwriting any prior script. extras keys are ignored if
// unrecognized. Returns the generated script's path.
func (e *Engine) Generate(def stage.Definition, runID, account string, parameters map[string]string, extras map[string]string) (string, error) {
	templatePath := filepath.Join(e.paths.TemplatesDir(), def.Template)
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return "", &apierr.TemplateError{Path: templatePath, Detail: "unable to read template: " + err.Error()}
	}

	adapterType := parameters["adapter_type"]
	if adapterType == "" {
		adapterType = defaultAdapterType
	}

	substitutions := map[string]string{
		"RUN_ID":       runID,
		"ACCOUNT":      account,
		"BASE_DIR":     e.paths.WorkDir,
		"RUN_DIR":      e.paths.RunDir(runID),
		"ADAPTER_TYPE": adapterType,
	}
	_ = extras // extras' keys are never substituted; unknown keys are ignored per spec.

	rendered := knownPlaceholderPattern.ReplaceAllFunc(raw, func(token []byte) []byte {
		key := string(token[1 : len(token)-1])
		return []byte(substitutions[key])
	})

	for _, m := range anyBracePattern.FindAllString(string(rendered), -1) {
		if m[0] == '$' {
			continue // ${...} bash parameter expansion, not one of ours
		}
		return "", &apierr.TemplateError{Path: templatePath, Detail: fmt.Sprintf("unknown placeholder %s", m)}
	}

	scriptPath := filepath.Join(e.paths.GeneratedSlurmDir(), fmt.Sprintf("%s_%s.script", def.Name, runID))
	if err := os.WriteFile(scriptPath, rendered, 0o755); err != nil {
		return "", &apierr.TemplateError{Path: scriptPath, Detail: "unable to write generated script: " + err.Error()}
	}
	if err := os.Chmod(scriptPath, 0o755); err != nil {
		return "", &apierr.TemplateError{Path: scriptPath, Detail: "unable to set executable permission: " + err.Error()}
	}
	return scriptPath, nil
}
