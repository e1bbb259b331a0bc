package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/3leaps/gridjobs/internal/errors"
	"github.com/3leaps/gridjobs/internal/observability"
	"github.com/3leaps/gridjobs/pkg/jobdb"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the environment and the job directory.

Examples:
  gridjobs doctor
  gridjobs doctor --workdir /data/run42`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	log := observability.CLILogger
	bannerName := appName + " doctor"
	log.Info("=== " + bannerName + " ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	checkNum := 1
	const totalChecks = 6

	// Check 1: Go version
	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		log.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	}
	checkNum++

	// Check 2: Crucible access
	version := crucible.GetVersion()
	if version.Crucible != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking Crucible access... ✅ v%s", checkNum, totalChecks, version.Crucible),
			zap.String("crucible_version", version.Crucible))
	} else {
		log.Error(fmt.Sprintf("[%d/%d] Checking Crucible access... ❌ Cannot access Crucible", checkNum, totalChecks))
		fail(errwrap.NewExternalServiceError("Crucible service unavailable"))
	}
	checkNum++

	// Check 3: Gofulmen access
	if version.Gofulmen != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ✅ v%s", checkNum, totalChecks, version.Gofulmen),
			zap.String("gofulmen_version", version.Gofulmen))
	} else {
		log.Error(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", checkNum, totalChecks))
		fail(errwrap.NewExternalServiceError("Gofulmen unavailable"))
	}
	checkNum++

	// Check 4: Job directory is writable
	jobsDir := appConfig.JobsDir()
	if err := checkWritable(jobsDir); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking job directory... ❌ %s is not writable", checkNum, totalChecks, jobsDir),
			zap.Error(err))
		fail(err)
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking job directory... ✅ %s", checkNum, totalChecks, jobsDir),
			zap.String("jobs_dir", jobsDir))
	}
	checkNum++

	// Check 5: Job records parse
	reg, err := openRegistry()
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Reading job records... ❌ %v", checkNum, totalChecks, err))
		fail(err)
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Reading job records... ✅ %d jobs (capacity %d)", checkNum, totalChecks, reg.Len(), reg.Capacity()),
			zap.Int("jobs", reg.Len()),
			zap.Int("capacity", reg.Capacity()))
	}
	checkNum++

	// Check 6: Environment
	log.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))

	log.Info("")
	if firstErr == nil {
		log.Info(fmt.Sprintf("✅ All checks passed! Your %s setup is healthy.", appName))
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")
	return firstErr
}

// checkWritable creates dir if needed and writes and removes a probe file.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &jobdb.StorageError{Op: "create", Path: dir, Err: err}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return &jobdb.StorageError{Op: "probe", Path: dir, Err: err}
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
