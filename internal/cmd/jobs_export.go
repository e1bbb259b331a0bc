package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/3leaps/gridjobs/internal/errors"
	"github.com/3leaps/gridjobs/internal/observability"
	"github.com/3leaps/gridjobs/pkg/output"
)

var jobsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export job records as JSONL",
	Long: `Export every recorded job that passes the selector as JSONL.

Each line is an envelope {type, ts, registry, data}. Job lines
(gridjobs.job.v1) are followed by one gridjobs.summary.v1 line. If the
registry cannot be read a single gridjobs.error.v1 line is written.

Examples:
  gridjobs jobs export > jobs.jsonl
  gridjobs jobs export --selector class:ENDSTATE --output done.jsonl`,
	Args: cobra.NoArgs,
	RunE: runJobsExport,
}

func init() {
	jobsCmd.AddCommand(jobsExportCmd)
	jobsExportCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}

func runJobsExport(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()
	outputPath, _ := cmd.Flags().GetString("output")

	var dst io.Writer = cmd.OutOrStdout()
	if outputPath = strings.TrimSpace(outputPath); outputPath != "" {
		f, ferr := os.Create(outputPath)
		if ferr != nil {
			return fmt.Errorf("create export file: %w", ferr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close export file: %w", cerr)
			}
		}()
		dst = f
	}

	w := output.NewJSONLWriter(dst, appConfig.JobsDir())
	defer func() { _ = w.Close() }()

	reg, err := openRegistry()
	if err != nil {
		_ = w.WriteError(ctx, &output.ErrorRecord{Code: errwrap.Code(err), Message: err.Error()})
		return err
	}

	start := time.Now()
	written := make([]*output.JobRecord, 0, reg.Len())
	for n := range reg.JobsIter(nil, nil) {
		job, ok := reg.Get(n)
		if !ok {
			continue
		}
		rec := output.NewJobRecord(n, job)
		if err := w.WriteJob(ctx, rec); err != nil {
			return err
		}
		written = append(written, rec)
	}

	elapsed := time.Since(start)
	sum := &output.SummaryRecord{
		Jobs:          len(written),
		Capacity:      reg.Capacity(),
		States:        output.StateCounts(written),
		Duration:      elapsed,
		DurationHuman: elapsed.Round(time.Millisecond).String(),
		Selector:      appConfig.Jobs.Selector,
	}
	if err := w.WriteSummary(ctx, sum); err != nil {
		return err
	}

	observability.CLILogger.Debug("Exported job records",
		zap.Int("jobs", len(written)),
		zap.String("output", outputPath))
	return nil
}
