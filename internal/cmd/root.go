// Package cmd implements the gridjobs command line.
package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gridjobs/internal/config"
	errwrap "github.com/3leaps/gridjobs/internal/errors"
	"github.com/3leaps/gridjobs/internal/observability"
	"github.com/3leaps/gridjobs/pkg/jobdb"
)

const appName = "gridjobs"

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile      string
	workDir      string
	jobLimit     int
	selectorExpr string
	logLevel     string
	verbose      bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Inspect and update a directory of grid job records",
	Long: `gridjobs manages the per-job state records of a grid workflow.

Each job lives in <workdir>/jobs/job_<N>.txt as escaped key=value lines.
Commands load the whole directory, act on the jobs in memory and write
back only the jobs they change.

Selectors (--selector) are comma separated terms that must all match:
  class:ATWMS  state:RUNNING|DONE  range:10-20  id:WMSID.CREAM.*  meta:dest=*.cern.ch
Prefix a term with '!' to negate it.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (YAML or JSON); defaults to $"+config.ConfigFileEnv)
	pf.StringVar(&workDir, "workdir", "", "Work directory holding the jobs/ record directory")
	pf.IntVar(&jobLimit, "job-limit", -1, "Maximum number of job records to load (-1 sizes to the records found)")
	pf.StringVar(&selectorExpr, "selector", "", "Only consider jobs matching this selector")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	overrides := map[string]any{}
	jobs := map[string]any{}
	flags := cmd.Flags()

	if flags.Changed("config") {
		overrides["config_file"] = cfgFile
	}
	if flags.Changed("workdir") {
		overrides["workdir"] = workDir
	}
	if flags.Changed("job-limit") {
		jobs["limit"] = jobLimit
	}
	if flags.Changed("selector") {
		jobs["selector"] = selectorExpr
	}
	if len(jobs) > 0 {
		overrides["jobs"] = jobs
	}
	if flags.Changed("log-level") {
		overrides["logging"] = map[string]any{"level": logLevel}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return errwrap.NewInvalidArgument("load config: %v", err)
	}

	if err := observability.SetLevel(cfg.Logging.Level); err != nil {
		return errwrap.NewInvalidArgument("%v", err)
	}
	if cfg.Logging.Profile == "STRUCTURED" {
		observability.InitStructuredLogger(appName, verbose)
	} else {
		observability.InitCLILogger(appName, verbose)
	}

	appConfig = cfg
	observability.CLILogger.Debug("Configuration loaded",
		zap.String("workdir", cfg.WorkDir),
		zap.String("config_file", cfg.ConfigFile),
		zap.Int("job_limit", cfg.Jobs.Limit),
		zap.String("selector", cfg.Jobs.Selector))
	return nil
}

// openRegistry loads the job registry described by the active config.
func openRegistry() (*jobdb.Registry, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	opts, err := appConfig.RegistryOptions()
	if err != nil {
		return nil, errwrap.NewInvalidArgument("%v", err)
	}
	opts = append(opts, jobdb.WithLogger(observability.CLILogger))
	return jobdb.Open(appConfig.JobsDir(), opts...)
}

func parseJobNumber(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 0 {
		return 0, errwrap.NewInvalidArgument("invalid job number %q", arg)
	}
	return n, nil
}
