package jobdb

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// DefaultRecordExt is the file extension of job record files.
const DefaultRecordExt = "txt"

// recordFileMode is the permission of committed record files.
const recordFileMode os.FileMode = 0644

// ProgressFunc observes the initial directory scan. It is called once per
// candidate record file with the number of candidates scanned so far, the
// number of jobs loaded and the total number of candidates.
type ProgressFunc func(scanned, loaded, total int)

// Registry is the directory-backed collection of job records, keyed by job
// number.
//
// Directory layout:
//
//	<dir>/job_0.txt
//	<dir>/job_1.txt
//	...
//
// All records are read once by Open. After that the in-memory map is the
// source of truth; changes reach disk only through Commit. A Registry is
// meant to be owned by a single goroutine of a single process.
type Registry struct {
	dir      string
	ext      string
	jobLimit int
	always   Selector
	jobs     map[int]*Job

	logger           *zap.Logger
	progress         ProgressFunc
	progressInterval time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithJobLimit bounds how many records are loaded and the default iteration
// range. A negative limit sizes the registry to the highest loaded job
// number + 1.
func WithJobLimit(n int) Option {
	return func(r *Registry) { r.jobLimit = n }
}

// WithSelector installs a selector that every iteration is filtered by.
func WithSelector(sel Selector) Option {
	return func(r *Registry) { r.always = sel }
}

// WithLogger sets the logger used for scan notices.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithProgress replaces the default scan progress reporter.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Registry) { r.progress = fn }
}

// WithProgressInterval sets how often the default reporter logs.
func WithProgressInterval(d time.Duration) Option {
	return func(r *Registry) { r.progressInterval = d }
}

// WithRecordExt changes the record file extension (without the dot).
func WithRecordExt(ext string) Option {
	return func(r *Registry) {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" {
			r.ext = ext
		}
	}
}

// Open creates dir if needed and loads every job record found in it.
//
// Record files are read in job number order. When a non-negative job limit
// is configured, loading stops once that many jobs are in memory; the
// remaining (higher-numbered) records are left on disk and a warning is
// logged. A record that cannot be parsed aborts Open.
func Open(dir string, opts ...Option) (*Registry, error) {
	r := &Registry{
		dir:              strings.TrimSpace(dir),
		ext:              DefaultRecordExt,
		jobLimit:         -1,
		jobs:             make(map[int]*Job),
		logger:           zap.NewNop(),
		progressInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dir == "" {
		return nil, &StorageError{Op: "open", Path: dir, Err: fmt.Errorf("job directory is empty")}
	}
	if r.progress == nil {
		r.progress = newProgressLogger(r.logger, r.progressInterval)
	}

	if err := r.readJobs(); err != nil {
		return nil, err
	}
	if r.jobLimit < 0 && len(r.jobs) > 0 {
		maxNum := 0
		for n := range r.jobs {
			maxNum = max(maxNum, n)
		}
		r.jobLimit = maxNum + 1
	}
	return r, nil
}

type candidate struct {
	num  int
	name string
}

func (r *Registry) readJobs() error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return &StorageError{Op: "create", Path: r.dir, Err: err}
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return &StorageError{Op: "list", Path: r.dir, Err: err}
	}

	pattern := "job_*." + r.ext
	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ok, _ := doublestar.Match(pattern, name); !ok {
			continue
		}
		num, ok := jobNumberFromName(name)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{num: num, name: name})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].num != candidates[j].num {
			return candidates[i].num < candidates[j].num
		}
		return candidates[i].name < candidates[j].name
	})

	for idx, c := range candidates {
		if r.jobLimit >= 0 && len(r.jobs) >= r.jobLimit {
			r.logger.Warn("Stopped reading job records: more records in the job directory than the job limit",
				zap.String("dir", r.dir),
				zap.Int("records", len(candidates)),
				zap.Int("loaded", len(r.jobs)),
				zap.Int("job_limit", r.jobLimit))
			break
		}
		job, err := Load(filepath.Join(r.dir, c.name))
		if err != nil {
			return err
		}
		r.jobs[c.num] = job
		r.progress(idx+1, len(r.jobs), len(candidates))
	}
	return nil
}

// jobNumberFromName extracts N from "job_N.ext".
func jobNumberFromName(name string) (int, bool) {
	stem, _, _ := strings.Cut(name, ".")
	tokens := strings.Split(stem, "_")
	if len(tokens) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(tokens[1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Dir returns the record directory.
func (r *Registry) Dir() string {
	return r.dir
}

// RecordPath returns the record file path for a job number.
func (r *Registry) RecordPath(jobNum int) string {
	return filepath.Join(r.dir, fmt.Sprintf("job_%d.%s", jobNum, r.ext))
}

// Capacity returns the job limit, which is not the number of known jobs.
func (r *Registry) Capacity() int {
	return r.jobLimit
}

// Len returns the number of jobs held in memory.
func (r *Registry) Len() int {
	return len(r.jobs)
}

// Get returns the job with the given number.
func (r *Registry) Get(jobNum int) (*Job, bool) {
	job, ok := r.jobs[jobNum]
	return job, ok
}

// GetDefault returns the job with the given number, or def if there is none.
func (r *Registry) GetDefault(jobNum int, def *Job) *Job {
	if job, ok := r.jobs[jobNum]; ok {
		return job
	}
	return def
}

// GetOrCreate returns the job with the given number, inserting a fresh INIT
// job first if there is none. An existing job is never replaced.
func (r *Registry) GetOrCreate(jobNum int) *Job {
	if job, ok := r.jobs[jobNum]; ok {
		return job
	}
	job := NewJob()
	r.jobs[jobNum] = job
	return job
}

// Lookup returns the job with the given number. A job that is not in memory
// but has a record file on disk, e.g. one left unread by the job limit, is
// loaded and kept. found is false when neither exists.
func (r *Registry) Lookup(jobNum int) (job *Job, found bool, err error) {
	if job, ok := r.jobs[jobNum]; ok {
		return job, true, nil
	}
	if jobNum < 0 {
		return nil, false, nil
	}
	path := r.RecordPath(jobNum)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &StorageError{Op: "stat", Path: path, Err: err}
	}
	job, err = Load(path)
	if err != nil {
		return nil, false, err
	}
	r.jobs[jobNum] = job
	return job, true, nil
}

// JobsIter yields the job numbers in subset (default [0, Capacity())) that
// pass both sel and the registry's persistent selector. A nil selector
// matches everything. Numbers without a job are tested against a fresh INIT
// job, which is not inserted.
//
// The sequence is lazy and may be ranged over any number of times.
func (r *Registry) JobsIter(sel Selector, subset []int) iter.Seq[int] {
	pred := And(sel, r.always)
	return func(yield func(int) bool) {
		visit := func(n int) bool {
			if pred != nil && !pred(n, r.GetDefault(n, NewJob())) {
				return true
			}
			return yield(n)
		}
		if subset != nil {
			for _, n := range subset {
				if !visit(n) {
					return
				}
			}
			return
		}
		for n := 0; n < r.jobLimit; n++ {
			if !visit(n) {
				return
			}
		}
	}
}

// Jobs collects JobsIter into a slice.
func (r *Registry) Jobs(sel Selector, subset []int) []int {
	out := []int{}
	for n := range r.JobsIter(sel, subset) {
		out = append(out, n)
	}
	return out
}

// JobsCount counts the numbers JobsIter would yield.
func (r *Registry) JobsCount(sel Selector, subset []int) int {
	count := 0
	for range r.JobsIter(sel, subset) {
		count++
	}
	return count
}

// Commit writes job as the record of jobNum, replacing any previous record.
// This is the only way job state reaches disk. Failures are returned as
// *StorageError and are not retried.
func (r *Registry) Commit(jobNum int, job *Job) error {
	if jobNum < 0 {
		return &StorageError{Op: "commit", Path: r.RecordPath(jobNum), Err: fmt.Errorf("invalid job number %d", jobNum)}
	}
	if job == nil {
		return &StorageError{Op: "commit", Path: r.RecordPath(jobNum), Err: fmt.Errorf("job is nil")}
	}
	b, err := EncodeRecord(job.GetAll())
	if err != nil {
		return &StorageError{Op: "commit", Path: r.RecordPath(jobNum), Err: fmt.Errorf("encode record: %w", err)}
	}
	if err := r.writeRecord(jobNum, b); err != nil {
		return &StorageError{Op: "commit", Path: r.RecordPath(jobNum), Err: err}
	}
	return nil
}

func (r *Registry) writeRecord(jobNum int, b []byte) error {
	finalPath := r.RecordPath(jobNum)

	tmp, err := os.CreateTemp(r.dir, fmt.Sprintf(".job_%d.tmp.*", jobNum))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Chmod(recordFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}
