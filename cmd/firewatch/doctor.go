package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/firewatchhq/firewatch/internal/adapter/driven/sqlite"
	"github.com/firewatchhq/firewatch/internal/application"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the tool's environment",
		Long: `Doctor probes everything firewatch depends on: GitHub credentials, the
local store, sync freshness, and the stack tooling. Exits non-zero when a
probe fails, so it doubles as a scriptable healthcheck.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx); err != nil {
				return err
			}
			format, err := a.outputFormat()
			if err != nil {
				return err
			}

			report, err := a.status.Doctor(ctx)
			if err != nil {
				return err
			}
			appendSchemaCheck(a, report)

			switch format {
			case formatJSON:
				err = emitJSON(os.Stdout, report)
			case formatHuman:
				err = renderDoctor(os.Stdout, report)
			default:
				err = emitJSONLine(os.Stdout, report)
			}
			if err != nil {
				return err
			}

			if !report.Healthy {
				return fmt.Errorf("%s failed", plural(unhealthyCount(report), "check", "checks"))
			}
			return nil
		},
	}
}

// appendSchemaCheck adds a migration probe to the report. The raw database
// handle never crosses into the services, so the probe runs in the CLI.
func appendSchemaCheck(a *app, report *application.DoctorReport) {
	check := application.DoctorCheck{Name: "schema", OK: true}
	version, dirty, err := sqliteadapter.SchemaVersion(a.db.Reader)
	switch {
	case err != nil:
		check.OK = false
		check.Detail = err.Error()
	case dirty:
		check.OK = false
		check.Detail = fmt.Sprintf("version %d is dirty, re-run migrations or clear the cache", version)
	default:
		check.Detail = fmt.Sprintf("version %d", version)
	}
	report.Checks = append(report.Checks, check)
	if !check.OK {
		report.Healthy = false
	}
}

func renderDoctor(w io.Writer, report *application.DoctorReport) error {
	tw := newTab(w)
	for _, c := range report.Checks {
		mark := greenText.Sprint("ok")
		if !c.OK {
			mark = redText.Sprint("fail")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, c.Name, faintText.Sprint(c.Detail))
	}
	return tw.Flush()
}

func unhealthyCount(report *application.DoctorReport) int {
	n := 0
	for _, c := range report.Checks {
		if !c.OK {
			n++
		}
	}
	return n
}
