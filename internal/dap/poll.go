package dap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-dap"

	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/pkg/types"
)

// poll checks pending breakpoints until ctx is done, reporting each one
// once it reaches its final state.
func (b *Bridge) poll(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.check(ctx); err != nil {
				b.logger.Warn("stopped reporting breakpoints", "error", err)
				return
			}
		}
	}
}

// check reports the breakpoints that completed since the last check. Only
// transport failures are returned.
func (b *Bridge) check(ctx context.Context) error {
	b.mu.Lock()
	target := b.target
	var pending []*tracked
	for _, ts := range b.sources {
		for _, t := range ts {
			if !t.final {
				pending = append(pending, t)
			}
		}
	}
	b.mu.Unlock()

	for _, t := range pending {
		rec, err := target.Get(ctx, t.id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Debug("failed to poll breakpoint", "id", t.id, "error", err)
			continue
		}
		if !rec.IsFinal() {
			continue
		}
		b.mu.Lock()
		t.final = true
		b.mu.Unlock()
		if err := b.report(t, rec); err != nil {
			return err
		}
	}
	return nil
}

// report sends the outcome of a final breakpoint as console output and a
// changed breakpoint.
func (b *Bridge) report(t *tracked, rec *debug.Record) error {
	bp := rec.Breakpoint()
	location := rec.GetString("location")
	kind := "Snapshot"
	if t.logpoint {
		kind = "Logpoint"
	}

	changed := dap.Breakpoint{Id: t.dapID, Verified: true, Line: t.line}
	var sb strings.Builder
	switch {
	case bp.Status != nil && bp.Status.IsError:
		msg := "failed"
		if bp.Status.Description != nil {
			msg = debug.FormatStatus(bp.Status.Description)
		}
		changed.Verified = false
		changed.Message = msg
		fmt.Fprintf(&sb, "%s at %s failed: %s\n", kind, location, msg)
	case t.logpoint:
		changed.Message = "expired"
		fmt.Fprintf(&sb, "%s at %s expired\n", kind, location)
	default:
		changed.Message = "captured"
		fmt.Fprintf(&sb, "%s at %s captured (%s)\n", kind, location, bp.ID)
		for _, v := range bp.EvaluatedExpressions {
			fmt.Fprintf(&sb, "  %s = %s\n", v.Name, formatValue(v))
		}
		if url := rec.GetString(debug.FieldConsoleViewURL); url != "" {
			fmt.Fprintf(&sb, "  %s\n", url)
		}
	}

	if err := b.output("console", sb.String()); err != nil {
		return err
	}
	return b.transport.Send(&dap.BreakpointEvent{
		Event: b.event("breakpoint"),
		Body:  dap.BreakpointEventBody{Reason: "changed", Breakpoint: changed},
	})
}

// formatValue renders a captured variable on one line.
func formatValue(v types.Variable) string {
	switch {
	case v.Status != nil && v.Status.IsError && v.Status.Description != nil:
		return "<" + debug.FormatStatus(v.Status.Description) + ">"
	case v.Value != "":
		return v.Value
	case len(v.Members) > 0:
		parts := make([]string, len(v.Members))
		for i, m := range v.Members {
			parts[i] = m.Name + ": " + formatValue(m)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<unavailable>"
	}
}
