// Package jobdb is the persistent job-state registry of the orchestrator.
//
// Every job number maps to a Job: its lifecycle state, submission attempt
// and history, WMS identifier, timestamps and a free-form metadata bag. Each
// job lives on disk as one record file (job_<N>.txt) holding escaped
// key=value lines.
//
// Typical use:
//
//	reg, err := jobdb.Open(filepath.Join(workDir, "jobs"), jobdb.WithJobLimit(100))
//	if err != nil {
//		return err
//	}
//	for n := range reg.JobsIter(jobdb.InClass(jobdb.ClassReady), nil) {
//		job := reg.GetOrCreate(n)
//		job.AssignID("WMSID.LOCAL.42")
//		job.Update(jobdb.StateSubmitted)
//		if err := reg.Commit(n, job); err != nil {
//			return err
//		}
//	}
//
// Nothing is persisted implicitly: mutations stay in memory until Commit.
package jobdb
