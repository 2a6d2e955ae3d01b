package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vinodismyname/ritualstats/internal/insights"
	"github.com/vinodismyname/ritualstats/internal/report"
	"github.com/vinodismyname/ritualstats/internal/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema LEDGER",
		Short: "Show which columns a ledger resolves and which summaries it supports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := a.localService(false)
			if err != nil {
				return err
			}
			defer closeLoader(cmd.Context(), svc)

			out, err := svc.Describe(cmd.Context(), insights.DescribeInput{Path: args[0]})
			if err != nil {
				return err
			}
			if f == report.FormatJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(out)
			}
			return writeSchema(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	return cmd
}

func writeSchema(cmd *cobra.Command, out insights.DescribeOutput) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s (sheet %q, %d rows)\n\n", out.Path, out.Sheet, out.Rows)

	fields := make([]string, 0, len(out.Columns))
	for f := range out.Columns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	fmt.Fprintln(w, "FIELD\tCOLUMN")
	for _, f := range fields {
		fmt.Fprintf(w, "%s\t%s\n", f, out.Columns[f])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SUMMARY\tSTATUS")
	for _, group := range [][]schema.Feasibility{out.Primary, out.Mapped} {
		for _, c := range group {
			status := "ok"
			if !c.Feasible {
				status = c.Note
			}
			fmt.Fprintf(w, "%s\t%s\n", c.Computation, status)
		}
	}
	return w.Flush()
}
