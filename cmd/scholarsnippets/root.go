package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ScholarSnippets/internal/app"
	"ScholarSnippets/internal/config"
	"ScholarSnippets/internal/logging"
)

type cliOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	members    string
	filtersDir string
	maxItems   int
	maxResults int

	outDir         string
	outJournals    string
	outConferences string
	outBooks       string
	excludedOut    string

	heroJournals    string
	heroConferences string
	heroBooks       string

	concurrency int
	mailto      string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "scholarsnippets",
		Short:         "Generate HTML bibliography snippets from ORCID identifiers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (YAML)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text, json, auto")
	flags.StringVar(&opts.members, "members", "", "CSV with orcid,name,filter_profile (or apply_filter)")
	flags.StringVar(&opts.filtersDir, "filters-dir", "", "Directory with filter profiles (.json, .yaml, .toml)")

	rootCmd.AddCommand(newGenerateCommand(opts))
	rootCmd.AddCommand(newCheckCommand(opts))
	return rootCmd
}

func newGenerateCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fetch works, classify, filter and write the snippets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			report, err := application.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, summaryTable(report.Output.Stats))
			fmt.Fprintf(out, "\nrun %s: journals=%d conferences=%d books=%d excluded=%d\n",
				report.RunID,
				len(report.Output.Journals),
				len(report.Output.Conferences),
				len(report.Output.Books),
				len(report.Output.Excluded),
			)
			for _, path := range report.Files {
				fmt.Fprintf(out, " - %s\n", path)
			}
			if failed := report.Output.Failures(); len(failed) > 0 {
				fmt.Fprintf(out, "warning: %d member(s) could not be retrieved, see log\n", len(failed))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.maxItems, "max", 0, "Max items per snippet")
	flags.IntVar(&opts.maxResults, "max-results", 0, "Max works fetched per identifier (0 = unlimited)")
	flags.StringVar(&opts.outDir, "out-dir", "", "Output directory")
	flags.StringVar(&opts.outJournals, "out-journals", "", "Journals snippet file")
	flags.StringVar(&opts.outConferences, "out-conferences", "", "Conferences snippet file")
	flags.StringVar(&opts.outBooks, "out-books", "", "Books snippet file")
	flags.StringVar(&opts.excludedOut, "excluded-out", "", "Exclusion report file")
	flags.StringVar(&opts.heroJournals, "hero-journals", "", "Hero image for the journals snippet")
	flags.StringVar(&opts.heroConferences, "hero-conferences", "", "Hero image for the conferences snippet")
	flags.StringVar(&opts.heroBooks, "hero-books", "", "Hero image for the books snippet")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "Identifiers fetched in parallel (1-8)")
	flags.StringVar(&opts.mailto, "mailto", "", "Contact address for the OpenAlex polite pool")
	return cmd
}

func newCheckCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, roster and filter profiles without network access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			inputs, err := application.Check()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, rosterTable(inputs.Roster))
			fmt.Fprintf(out, "OK: %d member(s), %d filter profile(s)\n", len(inputs.Roster), len(inputs.Profiles))
			return nil
		},
	}
}

// loadConfig reads the configuration file and applies flags the user set
// explicitly; unset flags never override file or environment values.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if changed("members") {
		cfg.Input.Members = opts.members
	}
	if changed("filters-dir") {
		cfg.Input.FiltersDir = opts.filtersDir
	}
	if changed("max") {
		cfg.Output.MaxItems = opts.maxItems
	}
	if changed("max-results") {
		cfg.Pipeline.MaxResults = opts.maxResults
	}
	if changed("out-dir") {
		cfg.Output.Dir = opts.outDir
	}
	if changed("out-journals") {
		cfg.Output.Journals.File = opts.outJournals
	}
	if changed("out-conferences") {
		cfg.Output.Conferences.File = opts.outConferences
	}
	if changed("out-books") {
		cfg.Output.Books.File = opts.outBooks
	}
	if changed("excluded-out") {
		cfg.Output.ExcludedFile = opts.excludedOut
	}
	if changed("hero-journals") {
		cfg.Output.Journals.HeroImage = opts.heroJournals
	}
	if changed("hero-conferences") {
		cfg.Output.Conferences.HeroImage = opts.heroConferences
	}
	if changed("hero-books") {
		cfg.Output.Books.HeroImage = opts.heroBooks
	}
	if changed("concurrency") {
		cfg.Pipeline.Concurrency = opts.concurrency
	}
	if changed("mailto") {
		cfg.OpenAlex.Mailto = opts.mailto
	}
	return cfg, nil
}
