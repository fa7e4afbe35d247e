package launchconfig

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ResolvedConfiguration is a cdbg configuration with its variables
// substituted.
type ResolvedConfiguration struct {
	Name            string
	Project         string
	Target          string
	IncludeInactive bool
	SourceRoot      string
	Condition       string
	Expressions     []string
}

// MissingInputsError lists ${input:} variables that have no value.
type MissingInputsError struct {
	Inputs []string
}

func (e *MissingInputsError) Error() string {
	return fmt.Sprintf("missing input values: %s", strings.Join(e.Inputs, ", "))
}

// IsMissingInputsError reports whether err is a *MissingInputsError.
func IsMissingInputsError(err error) (*MissingInputsError, bool) {
	var mie *MissingInputsError
	if errors.As(err, &mie) {
		return mie, true
	}
	return nil, false
}

// ResolveConfiguration substitutes the variables of cfg.
func ResolveConfiguration(cfg *Configuration, ctx *ResolutionContext) (*ResolvedConfiguration, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if err := ValidateConfiguration(cfg); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = &ResolutionContext{}
	}

	fields := append([]string{cfg.Project, cfg.Target, cfg.SourceRoot, cfg.Condition}, cfg.Expressions...)
	var missing []string
	seen := make(map[string]bool)
	for _, f := range fields {
		for _, id := range FindRequiredInputs(f) {
			if _, ok := ctx.InputValues[id]; !ok && !seen[id] {
				seen[id] = true
				missing = append(missing, id)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &MissingInputsError{Inputs: missing}
	}

	resolved := &ResolvedConfiguration{Name: cfg.Name, IncludeInactive: cfg.IncludeInactive}
	var err error
	if resolved.Project, err = ResolveVariables(cfg.Project, ctx); err != nil {
		return nil, fmt.Errorf("failed to resolve project: %w", err)
	}
	if resolved.Target, err = ResolveVariables(cfg.Target, ctx); err != nil {
		return nil, fmt.Errorf("failed to resolve target: %w", err)
	}
	if resolved.SourceRoot, err = ResolveVariables(cfg.SourceRoot, ctx); err != nil {
		return nil, fmt.Errorf("failed to resolve sourceRoot: %w", err)
	}
	if resolved.Condition, err = ResolveVariables(cfg.Condition, ctx); err != nil {
		return nil, fmt.Errorf("failed to resolve condition: %w", err)
	}
	for i, expr := range cfg.Expressions {
		v, err := ResolveVariables(expr, ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve expression %d: %w", i, err)
		}
		resolved.Expressions = append(resolved.Expressions, v)
	}
	return resolved, nil
}

// RelativePath maps a local source path to the path the debuggee reports.
// Paths under SourceRoot lose that prefix. Other paths are returned in
// slash form unchanged.
func (r *ResolvedConfiguration) RelativePath(path string) string {
	if r.SourceRoot == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(r.SourceRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
