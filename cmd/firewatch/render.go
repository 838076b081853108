package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/firewatchhq/firewatch/internal/application"
	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/identity"
)

const (
	formatJSONL = "jsonl"
	formatJSON  = "json"
	formatHuman = "human"
)

// color.NoColor already accounts for NO_COLOR and non-TTY stdout, so these
// degrade to plain text under pipes and in CI.
var (
	boldText   = color.New(color.Bold)
	cyanText   = color.New(color.FgCyan)
	faintText  = color.New(color.Faint)
	greenText  = color.New(color.FgGreen)
	yellowText = color.New(color.FgYellow)
	redText    = color.New(color.FgRed)
)

// emitJSONL writes one compact JSON object per row, the default machine
// format.
func emitJSONL[T any](w io.Writer, rows []T) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

// emitJSON pretty-prints v as one document.
func emitJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// emitJSONLine writes v as one compact JSON line, the jsonl form of a
// single-document result.
func emitJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func newTab(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// firstLine returns the first non-blank line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func stateText(state model.PRState) string {
	switch state {
	case model.PRStateOpen:
		return greenText.Sprint(state)
	case model.PRStateDraft:
		return faintText.Sprint(state)
	case model.PRStateMerged:
		return cyanText.Sprint(state)
	case model.PRStateClosed:
		return redText.Sprint(state)
	default:
		return string(state)
	}
}

// outcomeTag is the leading identifier of an outcome line: the short id when
// the target was a comment, the PR number when it was a whole PR.
func outcomeTag(o application.Outcome) string {
	switch {
	case o.ShortID != "":
		return identity.FormatDisplayID(o.ShortID)
	case o.PR != 0:
		return fmt.Sprintf("#%d", o.PR)
	default:
		return o.GHID
	}
}

// emitOutcomes renders a batch result in the requested format. Human mode
// prints one line per target with the failure/warning detail inline.
func emitOutcomes(w io.Writer, format string, outs []application.Outcome) error {
	switch format {
	case formatJSON:
		return emitJSON(w, outs)
	case formatHuman:
		for _, o := range outs {
			var notes []string
			if o.Resolved {
				notes = append(notes, "resolved")
			}
			if o.ReactionAdded {
				notes = append(notes, "reaction added")
			}
			if o.AlreadyAcked {
				notes = append(notes, "already acked")
			}
			if o.NewShortID != "" {
				notes = append(notes, "reply "+identity.FormatDisplayID(o.NewShortID))
			}
			if o.Warning != "" {
				notes = append(notes, yellowText.Sprint(o.Warning))
			}

			mark := greenText.Sprint("ok")
			if !o.OK {
				mark = redText.Sprint("failed")
				notes = append(notes, o.Err)
			}

			line := fmt.Sprintf("%s  %s", mark, cyanText.Sprint(outcomeTag(o)))
			if len(notes) > 0 {
				line += "  " + strings.Join(notes, ", ")
			}
			if o.URL != "" {
				line += "  " + faintText.Sprint(o.URL)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	default:
		return emitJSONL(w, outs)
	}
}

// emitOutcome renders a single-target action result.
func emitOutcome(w io.Writer, format string, o *application.Outcome) error {
	if format == formatJSON {
		return emitJSON(w, o)
	}
	return emitOutcomes(w, format, []application.Outcome{*o})
}
