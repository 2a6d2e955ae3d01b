package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/vinodismyname/ritualstats/internal/insights"
	"github.com/vinodismyname/ritualstats/internal/report"
)

type analyzeOptions struct {
	primary     string
	mapped      string
	narrate     bool
	format      string
	interactive bool
	topN        int
	groupPrefix string
	groupID     string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize a primary ledger, and a mapped ledger when given",
		Example: "  ritualstats analyze --primary bahi.xlsx --mapped mapped.xlsx --narrate\n" +
			"  ritualstats analyze --interactive --format json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, a, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.primary, "primary", "p", "", "primary ledger (.xlsx, .xlsm, .csv)")
	f.StringVarP(&opts.mapped, "mapped", "m", "", "mapped ledger with merged family ids (optional)")
	f.BoolVar(&opts.narrate, "narrate", false, "add a generated description to every computed section")
	f.StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "prompt for ledger paths, re-prompting when the primary cannot be read")
	f.IntVar(&opts.topN, "top-n", 0, "entries per ranking (default from config)")
	f.StringVar(&opts.groupPrefix, "group-prefix", "", "merged family id prefix (default from config)")
	f.StringVar(&opts.groupID, "group", "", "pin the group timeline to this merged id")
	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, opts *analyzeOptions) error {
	ctx := cmd.Context()
	log := zerolog.Ctx(ctx)

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.primary == "" && !opts.interactive {
		return errors.New("--primary is required (or use --interactive)")
	}

	svc, err := a.localService(opts.narrate)
	if err != nil {
		return err
	}
	defer closeLoader(ctx, svc)

	defs := a.cfg.AnalysisOptions()
	in := insights.AnalyzeInput{
		PrimaryPath: opts.primary,
		MappedPath:  opts.mapped,
		TopN:        firstInt(opts.topN, defs.TopN),
		GroupPrefix: firstString(opts.groupPrefix, defs.GroupPrefix),
		GroupID:     opts.groupID,
		Narrate:     opts.narrate,
	}

	var p *prompter
	if opts.interactive {
		p = newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
		if in.MappedPath == "" {
			if in.MappedPath, err = p.ask("Path to the mapped ledger (blank to skip): "); err != nil {
				return err
			}
		}
	}

	for {
		if in.PrimaryPath == "" {
			if in.PrimaryPath, err = p.ask("Path to the primary ledger: "); err != nil {
				return err
			}
			if in.PrimaryPath == "" {
				continue
			}
		}
		out, err := svc.Analyze(ctx, in)
		if err == nil {
			if out.MappedNote != "" {
				log.Warn().Str("mapped", in.MappedPath).Msg(out.MappedNote)
			}
			return report.Write(cmd.OutOrStdout(), out.Report, format)
		}
		if p == nil || !retryablePrimary(err) {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Could not read the primary ledger: %v\n", err)
		in.PrimaryPath = ""
	}
}

// retryablePrimary reports failures the user can fix by naming another file.
func retryablePrimary(err error) bool {
	var le *insights.LoadError
	if errors.As(err, &le) {
		return le.Role == "primary"
	}
	return errors.Is(err, insights.ErrInvalidInput) && strings.Contains(err.Error(), "primary_path")
}

// prompter reads one trimmed line per question.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errors.New("input closed before a ledger path was given")
		}
		return "", err
	}
	return strings.Trim(strings.TrimSpace(line), `"'`), nil
}

func firstInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func firstString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
