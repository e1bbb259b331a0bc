package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/3leaps/gridjobs/internal/errors"
	"github.com/3leaps/gridjobs/internal/observability"
	"github.com/3leaps/gridjobs/pkg/jobdb"
)

var jobsUpdateCmd = &cobra.Command{
	Use:   "update <job> <state>",
	Short: "Move a job to a new state",
	Long: `Move a job to a new state and commit it.

The change time is set to now and the current destination is recorded
for the current attempt.

States: INIT SUBMITTED DISABLED READY WAITING QUEUED ABORTED RUNNING
        CANCELLED DONE FAILED SUCCESS`,
	Args: cobra.ExactArgs(2),
	RunE: runJobsUpdate,
}

var jobsSetCmd = &cobra.Command{
	Use:   "set <job> <key=value>...",
	Short: "Set metadata values on a job",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runJobsSet,
}

func init() {
	jobsCmd.AddCommand(jobsUpdateCmd)
	jobsCmd.AddCommand(jobsSetCmd)
}

func runJobsUpdate(cmd *cobra.Command, args []string) error {
	n, err := parseJobNumber(args[0])
	if err != nil {
		return err
	}
	state, ok := jobdb.ParseState(args[1])
	if !ok {
		return errwrap.NewInvalidArgument("unknown job state %q", args[1])
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
		return errwrap.NewNotFound("job %d has no record in %s", n, reg.Dir())
	}
	from := job.State
	job.Update(state)
	if err := reg.Commit(n, job); err != nil {
		return err
	}

	observability.CLILogger.Info("Updated job state",
		zap.Int("job", n),
		zap.Stringer("from", from),
		zap.Stringer("to", state))
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", n, state)
	return nil
}

func runJobsSet(cmd *cobra.Command, args []string) error {
	n, err := parseJobNumber(args[0])
	if err != nil {
		return err
	}
	values, err := parseAssignments(args[1:])
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
		return errwrap.NewNotFound("job %d has no record in %s", n, reg.Dir())
	}
	for _, k := range values.Keys() {
		job.Set(k, values[k])
	}
	if err := reg.Commit(n, job); err != nil {
		return err
	}

	observability.CLILogger.Info("Updated job metadata",
		zap.Int("job", n),
		zap.Strings("keys", values.Keys()))
	return nil
}

// reservedKeys are rendered from typed job fields and cannot be set directly.
var reservedKeys = map[string]bool{
	jobdb.KeyStatus:    true,
	jobdb.KeyID:        true,
	jobdb.KeyAttempt:   true,
	jobdb.KeySubmitted: true,
	jobdb.KeyChanged:   true,
	jobdb.KeyLegacy:    true,
	"wmsId":            true,
}

func parseAssignments(args []string) (jobdb.Record, error) {
	values := make(jobdb.Record, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, errwrap.NewInvalidArgument("expected key=value, got %q", arg)
		}
		if reservedKeys[k] || strings.HasPrefix(k, "history_") {
			return nil, errwrap.NewInvalidArgument("key %q is managed by gridjobs and cannot be set", k)
		}
		if _, err := jobdb.EncodeRecord(jobdb.Record{k: v}); err != nil {
			return nil, errwrap.NewInvalidArgument("%v", err)
		}
		values[k] = v
	}
	return values, nil
}
