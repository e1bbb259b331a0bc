package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/3leaps/gridjobs/internal/errors"
	"github.com/3leaps/gridjobs/internal/observability"
	"github.com/3leaps/gridjobs/pkg/jobdb"
)

const defaultBackend = "LOCAL"

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit <job>",
	Short: "Start a new submission attempt for a job",
	Long: `Start a new submission attempt for a job and mark it SUBMITTED.

The job gets a new WMS id, its attempt counter is incremented and the
destination (if given) is recorded in the history of the new attempt.
A job without a record is created. An existing record is read even when
the job limit kept it from being loaded.

Examples:
  gridjobs jobs submit 3 --backend CREAM --dest ce01.example.org
  gridjobs jobs submit 3 --wms-id WMSID.ARC.gsiftp://ce/123`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsSubmit,
}

func init() {
	jobsCmd.AddCommand(jobsSubmitCmd)

	jobsSubmitCmd.Flags().String("wms-id", "", "WMS id to assign (WMSID.<backend>.<id>); generated when empty")
	jobsSubmitCmd.Flags().String("backend", defaultBackend, "Backend name used for generated WMS ids")
	jobsSubmitCmd.Flags().String("dest", "", "Destination the job was submitted to")
}

func runJobsSubmit(cmd *cobra.Command, args []string) error {
	wmsID, _ := cmd.Flags().GetString("wms-id")
	backend, _ := cmd.Flags().GetString("backend")
	dest, _ := cmd.Flags().GetString("dest")

	n, err := parseJobNumber(args[0])
	if err != nil {
		return err
	}
	wmsID, err = resolveWMSID(wmsID, backend)
	if err != nil {
		return err
	}

	reg, err := openRegistry()
	if err != nil {
		return err
	}
	job, found, err := reg.Lookup(n)
	if err != nil {
		return err
	}
	if !found {
		job = reg.GetOrCreate(n)
	}
	if dest = strings.TrimSpace(dest); dest != "" {
		job.Set(jobdb.KeyDest, dest)
	}
	job.AssignID(wmsID)
	job.Update(jobdb.StateSubmitted)
	if err := reg.Commit(n, job); err != nil {
		return err
	}

	observability.CLILogger.Info("Submitted job",
		zap.Int("job", n),
		zap.String("wms_id", wmsID),
		zap.Int("attempt", job.Attempt))
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", n, wmsID)
	return nil
}

// resolveWMSID validates an explicit id or generates WMSID.<backend>.<uuid>.
func resolveWMSID(wmsID, backend string) (string, error) {
	wmsID = strings.TrimSpace(wmsID)
	if wmsID != "" {
		parts := strings.SplitN(wmsID, ".", 3)
		if len(parts) != 3 || parts[0] != "WMSID" || parts[1] == "" || parts[2] == "" {
			return "", errwrap.NewInvalidArgument("wms id %q is not of the form WMSID.<backend>.<id>", wmsID)
		}
		return wmsID, nil
	}

	backend = strings.ToUpper(strings.TrimSpace(backend))
	if backend == "" || strings.Contains(backend, ".") {
		return "", errwrap.NewInvalidArgument("invalid backend name %q", backend)
	}
	return fmt.Sprintf("WMSID.%s.%s", backend, uuid.NewString()), nil
}
