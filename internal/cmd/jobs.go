package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	errwrap "github.com/3leaps/gridjobs/internal/errors"
	"github.com/3leaps/gridjobs/pkg/jobdb"
	"github.com/3leaps/gridjobs/pkg/output"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and update job records",
	Long: `Inspect and update the job records under <workdir>/jobs.

Job numbers without a record are shown as INIT jobs. Only the commands
that change a job (submit, update, set) write to disk, and only the
record of that job.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job>",
	Short: "Show the full record of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsCount,
}

var jobsClassesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List job classes and their member states",
	Args:  cobra.NoArgs,
	RunE:  runJobsClasses,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsCountCmd)
	jobsCmd.AddCommand(jobsClassesCmd)

	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsStatusCmd.Flags().Bool("json", false, "Output as JSON")
	jobsStatusCmd.Flags().Bool("yaml", false, "Output the record as YAML")
	jobsCountCmd.Flags().Bool("by-class", false, "Count per job class")
	jobsClassesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	reg, err := openRegistry()
	if err != nil {
		return err
	}

	records := make([]*output.JobRecord, 0, reg.Len())
	for n := range reg.JobsIter(nil, nil) {
		records = append(records, output.NewJobRecord(n, reg.GetDefault(n, jobdb.NewJob())))
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "JOB\tSTATE\tATTEMPT\tWMS ID\tCHANGED\tDEST")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			r.Number,
			r.State,
			r.Attempt,
			orDash(r.WMSID),
			formatOptionalTime(r.Changed),
			orDash(r.Fields[jobdb.KeyDest]),
		)
	}
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	yamlOutput, _ := cmd.Flags().GetBool("yaml")
	if jsonOutput && yamlOutput {
		return errwrap.NewInvalidArgument("--json and --yaml are mutually exclusive")
	}

	n, err := parseJobNumber(args[0])
	if err != nil {
		return err
	}
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	job, ok := reg.Get(n)
	if !ok {
		return errwrap.NewNotFound("job %d has no record in %s", n, reg.Dir())
	}
	rec := output.NewJobRecord(n, job)

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case yamlOutput:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"job": n, "record": rec.Fields}); err != nil {
			return err
		}
		return enc.Close()
	}

	_, _ = fmt.Fprintf(out, "job=%d\n", n)
	writeFields(out, rec.Fields)
	return nil
}

func runJobsCount(cmd *cobra.Command, _ []string) error {
	byClass, _ := cmd.Flags().GetBool("by-class")

	reg, err := openRegistry()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !byClass {
		_, _ = fmt.Fprintln(out, reg.JobsCount(nil, nil))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	_, _ = fmt.Fprintln(w, "CLASS\tJOBS")
	for _, c := range jobdb.Classes() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", c.Name, reg.JobsCount(jobdb.InClass(c), nil))
	}
	_, _ = fmt.Fprintf(w, "%s\t%d\n", "ALL", reg.JobsCount(nil, nil))
	return nil
}

type classView struct {
	Name   string   `json:"name"`
	States []string `json:"states"`
}

func runJobsClasses(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	views := make([]classView, 0, len(jobdb.Classes()))
	for _, c := range jobdb.Classes() {
		v := classView{Name: c.Name}
		for _, st := range c.Members {
			v.States = append(v.States, st.String())
		}
		views = append(views, v)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	_, _ = fmt.Fprintln(w, "CLASS\tSTATES")
	for _, v := range views {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", v.Name, strings.Join(v.States, ", "))
	}
	return nil
}

// writeFields prints a record as key=value lines in key order.
func writeFields(w io.Writer, fields map[string]string) {
	for _, k := range jobdb.Record(fields).Keys() {
		_, _ = fmt.Fprintf(w, "%s=%s\n", k, fields[k])
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
