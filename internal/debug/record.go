package debug

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/ctagard/cdbg/internal/logexpr"
	"github.com/ctagard/cdbg/pkg/types"
)

// DefaultConsoleHost serves the breakpoint view linked from every Record.
const DefaultConsoleHost = "console.developers.google.com"

// Field names added to every Record.
const (
	FieldProjectID        = "projectId"
	FieldProjectNumber    = "projectNumber"
	FieldTargetUniquifier = "targetUniquifier"
	FieldTargetID         = "targetId"
	FieldConsoleViewURL   = "consoleViewUrl"
)

// breakpointFields lists every wire field of a breakpoint with the value a
// Record reports for it when the breakpoint leaves it unset.
var breakpointFields = []struct {
	name string
	zero any
}{
	{"id", ""},
	{"action", ""},
	{"location", nil},
	{"condition", ""},
	{"expressions", []any{}},
	{"logMessageFormat", ""},
	{"logLevel", ""},
	{"isFinalState", false},
	{"createTime", ""},
	{"finalTime", ""},
	{"userEmail", ""},
	{"status", nil},
	{"stackFrames", []any{}},
	{"evaluatedExpressions", []any{}},
	{"variableTable", []any{}},
	{"labels", map[string]any{}},
}

// Record is a breakpoint decorated for display. Visible fields are kept as
// a JSON document in wire order followed by the added fields. Hidden fields
// are still retrievable by name but are not enumerated or encoded.
type Record struct {
	bp     *types.Breakpoint
	doc    []byte
	hidden map[string]any
}

// Decorate wraps bp with the identity of target and a console link on the
// default console host.
func Decorate(bp *types.Breakpoint, target *Debuggee) *Record {
	return decorate(bp, target, DefaultConsoleHost)
}

func decorate(bp *types.Breakpoint, target *Debuggee, consoleHost string) *Record {
	r := &Record{
		bp: bp,
		hidden: map[string]any{
			FieldProjectID:        target.ProjectID,
			FieldProjectNumber:    target.ProjectNumber,
			FieldTargetUniquifier: target.Uniquifier,
			FieldTargetID:         target.TargetID,
		},
	}

	doc, err := json.Marshal(bp)
	if err != nil {
		// Breakpoint holds only strings, numbers and raw JSON.
		panic(fmt.Sprintf("debug: marshal breakpoint: %v", err))
	}
	for _, f := range breakpointFields {
		if !gjson.GetBytes(doc, f.name).Exists() {
			r.hidden[f.name] = f.zero
		}
	}

	doc = r.set(doc, FieldConsoleViewURL, ConsoleURL(consoleHost, target, bp))
	if bp.Location != nil {
		doc = r.set(doc, "location", FormatLocation(bp.Location))
	}
	if bp.LogMessageFormat != "" {
		doc = r.set(doc, "logMessageFormat", logexpr.Merge(bp.LogMessageFormat, bp.Expressions))
		if gjson.GetBytes(doc, "expressions").Exists() {
			doc = r.remove(doc, "expressions")
		}
		r.hidden["expressions"] = nonNil(bp.Expressions)
	}
	r.doc = doc
	return r
}

func (r *Record) set(doc []byte, name string, value any) []byte {
	out, err := sjson.SetBytes(doc, name, value)
	if err != nil {
		panic(fmt.Sprintf("debug: set %s: %v", name, err))
	}
	delete(r.hidden, name)
	return out
}

func (r *Record) remove(doc []byte, name string) []byte {
	out, err := sjson.DeleteBytes(doc, name)
	if err != nil {
		panic(fmt.Sprintf("debug: delete %s: %v", name, err))
	}
	return out
}

func nonNil(exprs []string) []string {
	if exprs == nil {
		return []string{}
	}
	return exprs
}

// ConsoleURL links to the breakpoint's view in the web console. Query
// parameters keep their documented order, so they are not built with
// url.Values, which sorts keys.
func ConsoleURL(host string, target *Debuggee, bp *types.Breakpoint) string {
	var sb strings.Builder
	sb.WriteString("https://")
	sb.WriteString(host)
	sb.WriteString("/debug/fromgcloud?")
	writeParam(&sb, "project", strconv.FormatInt(target.ProjectNumber, 10), false)
	writeParam(&sb, "dbgee", target.Uniquifier, true)
	writeParam(&sb, "bp", bp.ID, true)
	if bp.Location != nil {
		if bp.Location.Path != "" {
			writeParam(&sb, "fp", bp.Location.Path, true)
		}
		if bp.Location.Line != 0 {
			writeParam(&sb, "fl", strconv.Itoa(bp.Location.Line), true)
		}
	}
	return sb.String()
}

func writeParam(sb *strings.Builder, key, value string, sep bool) {
	if sep {
		sb.WriteByte('&')
	}
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(url.QueryEscape(value))
}

// FormatStatus substitutes the parameters of a status message. "$$" is a
// literal dollar sign.
func FormatStatus(msg *types.FormatMessage) string {
	return statusParam.ReplaceAllStringFunc(msg.Format, func(tok string) string {
		if tok == "$$" {
			return "$"
		}
		i, err := strconv.Atoi(tok[1:])
		if err != nil || i >= len(msg.Parameters) {
			return tok
		}
		return msg.Parameters[i]
	})
}

var statusParam = regexp.MustCompile(`\$(\$|[0-9]+)`)

// FormatLocation renders a source location as "path:line".
func FormatLocation(loc *types.SourceLocation) string {
	return fmt.Sprintf("%s:%d", loc.Path, loc.Line)
}

// Breakpoint returns the undecorated breakpoint.
func (r *Record) Breakpoint() *types.Breakpoint { return r.bp }

// ID returns the breakpoint ID.
func (r *Record) ID() string { return r.bp.ID }

// IsFinal reports whether the breakpoint reached its final state.
func (r *Record) IsFinal() bool { return r.bp.IsFinalState }

// Get returns a field by name, looking at visible fields first and hidden
// fields second. Visible values are decoded from JSON, so numbers are
// float64 and objects are map[string]any.
func (r *Record) Get(name string) (any, bool) {
	if v := gjson.GetBytes(r.doc, gjsonEscape(name)); v.Exists() {
		return v.Value(), true
	}
	v, ok := r.hidden[name]
	return v, ok
}

// GetString returns a field rendered as a string, or "" when it is absent.
func (r *Record) GetString(name string) string {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Fields returns the names of the visible fields in display order.
func (r *Record) Fields() []string {
	var names []string
	gjson.ParseBytes(r.doc).ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	return names
}

// IsHidden reports whether name is a hidden field.
func (r *Record) IsHidden(name string) bool {
	_, ok := r.hidden[name]
	return ok
}

// MarshalJSON encodes the visible fields.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.doc, nil
}

// MarshalYAML encodes the visible fields in display order.
func (r *Record) MarshalYAML() (interface{}, error) {
	return jsonToYAML(r.doc)
}

// jsonToYAML converts a JSON document to a YAML node, keeping key order.
func jsonToYAML(doc []byte) (*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("debug: convert json to yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	node := root.Content[0]
	clearStyle(node)
	return node, nil
}

// clearStyle drops the flow and quoting styles a JSON source carries so the
// node is emitted as block YAML.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

func gjsonEscape(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
