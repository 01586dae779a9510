package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tecal/internal/config"
	"tecal/internal/export"
	appLog "tecal/internal/log"
	"tecal/internal/schedule"
	"tecal/internal/timeedit"
)

type convertOptions struct {
	configPath  string
	output      string
	icsOutput   string
	headerLines int
	timezone    string
	verbose     bool
	quiet       bool
	within      []string
	keep        map[string]string
}

func newConvertCmd() *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [input]",
		Short: "Filter a TimeEdit export and write calendar files",
		Long: `Reads a TimeEdit export (file path or http(s) URL), applies the rules
from --config followed by the --within/--keep flags, and writes the result.

Each --within flag is one group of field=value pairs; an event is in a
group if it matches any pair (repeat a field to list alternatives), and
--keep only drops events that are in every group. --keep pairs must all match for an event in scope to stay.
Date fields (startdatum, slutdatum) take YYYY-MM-DD and time fields
(starttid, sluttid) take HH:MM; they match exactly. Other fields match
when the value is contained in the event's text.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, args)
			if err != nil {
				return err
			}
			logger, err := opts.logger(cmd, cfg)
			if err != nil {
				return err
			}
			return runConvert(cmd.Context(), cfg, opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	f.StringVarP(&opts.output, "output", "o", "", "CSV output path (default calendar.csv)")
	f.StringVar(&opts.icsOutput, "ics", "", "also write an iCalendar file to this path")
	f.IntVar(&opts.headerLines, "header-lines", 0, "metadata lines above the CSV header (default 3, -1 for none)")
	f.StringVar(&opts.timezone, "timezone", "", "IANA timezone of the export (default Europe/Stockholm)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress (overrides log_level)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "log nothing; failures are still reported")
	f.StringArrayVar(&opts.within, "within", nil, "field=value[,field=value...] group limiting what --keep drops (repeatable)")
	f.StringToStringVar(&opts.keep, "keep", nil, "field=value pairs an event in scope must all match")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}

// resolve merges the config file (if any), positional input and flags.
func (o *convertOptions) resolve(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Input = ""
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(args) == 1 {
		cfg.Input = args[0]
	}
	if cfg.Input == "" {
		return nil, errors.New("no input: pass a file or URL, or set input in the config")
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = o.output
	}
	if flags.Changed("ics") {
		cfg.ICSOutput = o.icsOutput
	}
	if flags.Changed("header-lines") {
		cfg.HeaderLines = o.headerLines
	}
	if flags.Changed("timezone") {
		cfg.Timezone = o.timezone
	}
	cfg.Normalize()
	return cfg, nil
}

// logger picks the run logger: --quiet discards, --verbose logs progress,
// otherwise the config's log_level applies.
func (o *convertOptions) logger(cmd *cobra.Command, cfg *config.Config) (*appLog.Logger, error) {
	switch {
	case o.quiet:
		return appLog.Discard(), nil
	case o.verbose:
		return appLog.New(cmd.ErrOrStderr(), appLog.LevelInfo), nil
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return appLog.New(cmd.ErrOrStderr(), level), nil
}

// flagRule builds the rule given by --within and --keep, if any.
func (o *convertOptions) flagRule() (schedule.Rule, bool, error) {
	if len(o.within) == 0 && len(o.keep) == 0 {
		return schedule.Rule{}, false, nil
	}

	r := schedule.Rule{Name: "command line"}
	for _, w := range o.within {
		group, err := parseGroup(w)
		if err != nil {
			return schedule.Rule{}, false, fmt.Errorf("--within %q: %w", w, err)
		}
		r.Within = append(r.Within, group)
	}

	keep, err := schedule.ParseCriteria(o.keep)
	if err != nil {
		return schedule.Rule{}, false, fmt.Errorf("--keep: %w", err)
	}
	r.Keep = keep
	return r, true, nil
}

// parseGroup turns "a=1,a=2,b=3" into criteria in the order given; a field
// may repeat. A pair may be double-quoted to contain commas
// ("lokal=SU15, SU17").
func parseGroup(s string) ([]schedule.Criterion, error) {
	r := csv.NewReader(strings.NewReader(s))
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}

	out := make([]schedule.Criterion, 0, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%q must be formatted as field=value", f)
		}
		c, err := schedule.ParseCriterion(k, v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func runConvert(ctx context.Context, cfg *config.Config, opts *convertOptions, logger *appLog.Logger) error {
	logger.Info("effective config",
		"input", cfg.Input,
		"output", cfg.Output,
		"ics_output", cfg.ICSOutput,
		"header_lines", cfg.HeaderLines,
		"timezone", cfg.Timezone,
		"rules", len(cfg.Rules),
	)

	rules, err := cfg.FilterRules()
	if err != nil {
		return err
	}
	flagRule, ok, err := opts.flagRule()
	if err != nil {
		return err
	}
	if ok {
		rules = append(rules, flagRule)
	}

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	var sched *schedule.Schedule
	if timeedit.IsURL(cfg.Input) {
		fetcher := timeedit.NewFetcher(cfg.CacheDir, logger)
		sched, err = fetcher.LoadURL(ctx, cfg.Input, cfg.ReadOptions(), schedule.WithLogger(logger))
	} else {
		sched, err = timeedit.Load(cfg.Input, cfg.ReadOptions(), schedule.WithLogger(logger))
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", cfg.Input, err)
	}

	result := sched.Apply(rules...)

	if err := export.WriteCSVFile(cfg.Output, result); err != nil {
		return err
	}
	if cfg.ICSOutput != "" {
		if err := export.WriteICSFile(cfg.ICSOutput, result, export.ICSOptions{Location: location}); err != nil {
			return err
		}
	}

	logger.Info("conversion done", "events_in", sched.Len(), "events_out", result.Len(), "timezone", location.String())
	return nil
}
