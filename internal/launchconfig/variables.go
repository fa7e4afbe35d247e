package launchconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// Variable pattern matches ${...} expressions
var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveVariables replaces all ${...} variables in the given text. Each
// unresolvable variable is left in place and the last failure is returned.
func ResolveVariables(text string, ctx *ResolutionContext) (string, error) {
	if ctx == nil {
		ctx = &ResolutionContext{}
	}

	var lastErr error
	result := variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := match[2 : len(match)-1]

		resolved, err := resolveVariable(expr, ctx)
		if err != nil {
			lastErr = err
			return match
		}
		return resolved
	})

	return result, lastErr
}

func resolveVariable(expr string, ctx *ResolutionContext) (string, error) {
	switch {
	case expr == "workspaceFolder":
		return ctx.WorkspaceFolder, nil

	case expr == "workspaceFolderBasename":
		return filepath.Base(ctx.WorkspaceFolder), nil

	case expr == "userHome":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home: %w", err)
		}
		return home, nil

	case expr == "cwd":
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get cwd: %w", err)
		}
		return cwd, nil

	case expr == "pathSeparator":
		return string(os.PathSeparator), nil

	case strings.HasPrefix(expr, "env:"):
		varName := strings.TrimPrefix(expr, "env:")
		if val, ok := ctx.EnvOverrides[varName]; ok {
			return val, nil
		}
		return os.Getenv(varName), nil

	case strings.HasPrefix(expr, "config:"):
		return resolveConfigVariable(strings.TrimPrefix(expr, "config:"), ctx.WorkspaceFolder)

	case strings.HasPrefix(expr, "input:"):
		inputID := strings.TrimPrefix(expr, "input:")
		if val, ok := ctx.InputValues[inputID]; ok {
			return val, nil
		}
		return "", fmt.Errorf("missing input value for ${input:%s}", inputID)

	default:
		return "", fmt.Errorf("unknown variable: ${%s}", expr)
	}
}

// resolveConfigVariable reads a setting from .vscode/settings.json. VS Code
// writes settings as flat dotted keys but also accepts nested objects, so
// the flat key is tried first. A missing file or setting resolves to "".
func resolveConfigVariable(settingID, workspaceFolder string) (string, error) {
	if workspaceFolder == "" {
		return "", fmt.Errorf("workspaceFolder required for ${config:} variables")
	}

	data, err := os.ReadFile(filepath.Join(workspaceFolder, VSCodeDirName, "settings.json"))
	if err != nil {
		return "", nil
	}
	data = jsonc.ToJSON(data)
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("failed to parse settings.json")
	}

	v := gjson.GetBytes(data, escapePath(settingID))
	if !v.Exists() {
		v = gjson.GetBytes(data, settingID)
	}
	if !v.Exists() || v.Type == gjson.Null {
		return "", nil
	}
	if v.IsObject() || v.IsArray() {
		return v.Raw, nil
	}
	return v.String(), nil
}

func escapePath(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// FindRequiredInputs scans a text for ${input:...} variables and returns their IDs.
func FindRequiredInputs(text string) []string {
	var inputs []string
	seen := make(map[string]bool)

	for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
		expr := match[1]
		if !strings.HasPrefix(expr, "input:") {
			continue
		}
		inputID := strings.TrimPrefix(expr, "input:")
		if !seen[inputID] {
			seen[inputID] = true
			inputs = append(inputs, inputID)
		}
	}
	return inputs
}

// InputDefaults returns the default value of every input that declares one.
func InputDefaults(lj *LaunchJSON) map[string]string {
	defaults := make(map[string]string)
	for _, in := range lj.Inputs {
		switch {
		case in.Default != "":
			defaults[in.ID] = in.Default
		case len(in.Options) > 0:
			defaults[in.ID] = in.Options[0]
		}
	}
	return defaults
}
