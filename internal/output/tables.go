package output

import (
	"strings"

	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/pkg/types"
)

// Debuggees lists debug targets.
type Debuggees []*debug.Debuggee

// Header implements Table.
func (Debuggees) Header() []string {
	return []string{"ID", "NAME", "DESCRIPTION"}
}

// Rows implements Table.
func (d Debuggees) Rows() [][]string {
	rows := make([][]string, len(d))
	for i, dbg := range d {
		rows[i] = []string{dbg.TargetID, dbg.Name(), dbg.Description}
	}
	return rows
}

// Breakpoints lists decorated snapshots or logpoints.
type Breakpoints []*debug.Record

// Header implements Table.
func (Breakpoints) Header() []string {
	return []string{"ID", "TYPE", "LOCATION", "CONDITION", "DETAIL", "STATUS"}
}

// Rows implements Table.
func (b Breakpoints) Rows() [][]string {
	rows := make([][]string, len(b))
	for i, r := range b {
		bp := r.Breakpoint()
		kind := "snapshot"
		detail := strings.Join(bp.Expressions, ", ")
		if bp.EffectiveAction() == types.ActionLog {
			kind = "logpoint"
			detail = r.GetString("logMessageFormat")
			if bp.LogLevel != "" {
				detail = string(bp.LogLevel) + ": " + detail
			}
		}
		rows[i] = []string{bp.ID, kind, r.GetString("location"), bp.Condition, detail, Status(bp)}
	}
	return rows
}

// Status summarizes the state of a breakpoint in one word, or with the
// service's message when it failed.
func Status(bp *types.Breakpoint) string {
	if !bp.IsFinalState {
		return "ACTIVE"
	}
	if bp.Status != nil && bp.Status.IsError {
		if d := bp.Status.Description; d != nil {
			return "ERROR: " + debug.FormatStatus(d)
		}
		return "ERROR"
	}
	return "COMPLETED"
}
