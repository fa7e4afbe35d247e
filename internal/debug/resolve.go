package debug

import (
	"regexp"
	"strconv"

	"github.com/ctagard/cdbg/internal/errors"
)

// MultipleDebuggeesError is returned when a resolution ends with more than
// one candidate. It unwraps to a MULTIPLE_DEBUGGEES DebugError.
type MultipleDebuggeesError struct {
	// Pattern is the pattern that was resolved, empty for the default.
	Pattern string
	// Debuggees are the candidates that could not be told apart.
	Debuggees []*Debuggee

	err *errors.DebugError
}

func newMultipleDebuggeesError(pattern string, debuggees []*Debuggee) *MultipleDebuggeesError {
	names := make([]string, len(debuggees))
	for i, d := range debuggees {
		names[i] = d.String()
	}
	return &MultipleDebuggeesError{
		Pattern:   pattern,
		Debuggees: debuggees,
		err:       errors.MultipleDebuggees(pattern, names),
	}
}

func (e *MultipleDebuggeesError) Error() string { return e.err.Error() }

func (e *MultipleDebuggeesError) Unwrap() error { return e.err }

// ResolveDefault picks the default debug target from a listing.
//
// A single debuggee is the default. Otherwise the latest minor version of a
// single deployment wins, then the only debuggee of the default module, then
// the latest minor version of the default module, then the only default
// version of the default module and finally its latest minor version.
func ResolveDefault(debuggees []*Debuggee) (*Debuggee, error) {
	switch len(debuggees) {
	case 0:
		return nil, errors.NoDebuggee("")
	case 1:
		return debuggees[0], nil
	}
	if latest := LatestMinorVersion(debuggees); latest != nil {
		return latest, nil
	}

	byModule := filter(debuggees, func(d *Debuggee) bool { return d.Module() == "" })
	switch len(byModule) {
	case 0:
		return nil, newMultipleDebuggeesError("", debuggees)
	case 1:
		return byModule[0], nil
	}
	if latest := LatestMinorVersion(byModule); latest != nil {
		return latest, nil
	}

	byVersion := filter(byModule, func(d *Debuggee) bool { return d.Version() == "" })
	switch len(byVersion) {
	case 0:
		return nil, newMultipleDebuggeesError("", debuggees)
	case 1:
		return byVersion[0], nil
	}
	if latest := LatestMinorVersion(byVersion); latest != nil {
		return latest, nil
	}

	// The default version of an App Engine module is not visible in the
	// debuggee labels, so there is nothing left to go on.
	return nil, errors.NoDebuggee("")
}

// Resolve picks the debug target matching pattern. The pattern matches a
// target ID exactly, or is searched for in the display name. When no name
// matches, descriptions are searched instead. An empty pattern resolves the
// default target.
func Resolve(debuggees []*Debuggee, pattern string) (*Debuggee, error) {
	if pattern == "" {
		return ResolveDefault(debuggees)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.InvalidPattern(pattern, err)
	}

	candidates := filter(debuggees, func(d *Debuggee) bool {
		return d.TargetID == pattern || re.MatchString(d.Name())
	})
	if len(candidates) == 0 {
		candidates = filter(debuggees, func(d *Debuggee) bool {
			return re.MatchString(d.Description)
		})
	}

	switch len(candidates) {
	case 0:
		return nil, errors.NoDebuggee(pattern)
	case 1:
		return candidates[0], nil
	}
	if latest := LatestMinorVersion(candidates); latest != nil {
		return latest, nil
	}
	return nil, newMultipleDebuggeesError(pattern, candidates)
}

// LatestMinorVersion returns the debuggee with the highest minorversion
// label, provided every debuggee shares one display name and carries a
// non-zero integer minorversion. Otherwise it returns nil. The first of
// equal versions wins.
func LatestMinorVersion(debuggees []*Debuggee) *Debuggee {
	if len(debuggees) == 0 {
		return nil
	}
	name := debuggees[0].Name()
	var (
		best        *Debuggee
		bestVersion int64
	)
	for _, d := range debuggees {
		if d.Name() != name {
			return nil
		}
		minor, err := strconv.ParseInt(d.MinorVersion(), 10, 64)
		if err != nil || minor == 0 {
			return nil
		}
		if best == nil || minor > bestVersion {
			best, bestVersion = d, minor
		}
	}
	return best
}

func filter(debuggees []*Debuggee, keep func(*Debuggee) bool) []*Debuggee {
	var out []*Debuggee
	for _, d := range debuggees {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
