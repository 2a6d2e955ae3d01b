package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vinodismyname/ritualstats/internal/insights"
	"github.com/vinodismyname/ritualstats/internal/report"
)

type timelineOptions struct {
	mapped      string
	groupID     string
	groupPrefix string
	narrate     bool
	format      string
}

func newTimelineCmd(a *app) *cobra.Command {
	opts := &timelineOptions{}
	cmd := &cobra.Command{
		Use:     "timeline",
		Short:   "Reconstruct one merged family group from a mapped ledger",
		Example: "  ritualstats timeline --mapped mapped.xlsx --group GROUP12",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(cmd, a, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.mapped, "mapped", "m", "", "mapped ledger with merged family ids")
	f.StringVarP(&opts.groupID, "group", "g", "", "merged id to reconstruct (default: most repeated group)")
	f.StringVar(&opts.groupPrefix, "group-prefix", "", "merged family id prefix (default from config)")
	f.BoolVar(&opts.narrate, "narrate", false, "add a generated description")
	f.StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")
	_ = cmd.MarkFlagRequired("mapped")
	return cmd
}

func runTimeline(cmd *cobra.Command, a *app, opts *timelineOptions) error {
	ctx := cmd.Context()
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	svc, err := a.localService(opts.narrate)
	if err != nil {
		return err
	}
	defer closeLoader(ctx, svc)

	out, err := svc.Timeline(ctx, insights.TimelineInput{
		MappedPath:  opts.mapped,
		GroupPrefix: firstString(opts.groupPrefix, a.cfg.Analysis.GroupPrefix),
		GroupID:     opts.groupID,
		Narrate:     opts.narrate,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format == report.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(out)
	}
	if _, err := fmt.Fprintln(w, out.Summary); err != nil {
		return err
	}
	if out.Narration != "" {
		_, err = fmt.Fprintf(w, "Description: %s\n", out.Narration)
	}
	return err
}
