package build

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// JobKind selects the compiler and flag set for one source file.
type JobKind int

const (
	JobC JobKind = iota
	JobCPP
	JobASM
)

func (k JobKind) String() string {
	switch k {
	case JobC:
		return "c"
	case JobCPP:
		return "c++"
	case JobASM:
		return "asm"
	}
	return "??"
}

func jobKind(ext string) (JobKind, bool) {
	switch strings.ToLower(ext) {
	case ".c":
		return JobC, true
	case ".cpp":
		return JobCPP, true
	case ".s":
		return JobASM, true
	}
	return 0, false
}

// BuildReason says why a job needs compiling. The zero value means the
// object file is up to date.
type BuildReason int

const (
	ReasonNone BuildReason = iota
	ReasonForced
	ReasonObjMissing
	ReasonSrcMissing
	ReasonSrcNewer
	ReasonDepNewer
	ReasonDepMissing
	ReasonNoDepFile
)

var reasonNames = map[BuildReason]string{
	ReasonNone:       "up to date",
	ReasonForced:     "forced",
	ReasonObjMissing: "object missing",
	ReasonSrcMissing: "source missing",
	ReasonSrcNewer:   "source newer",
	ReasonDepNewer:   "dependency newer",
	ReasonDepMissing: "dependency missing",
	ReasonNoDepFile:  "no dependency file",
}

func (r BuildReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "??"
}

// Job is one source file with its derived object and dependency file
// paths. Object and dependency names keep the source extension, so a.c
// and a.cpp never collide.
type Job struct {
	Kind JobKind

	Src string
	Obj string
	Dep string

	Reason BuildReason
}

// Rebuild reports whether the job needs compiling.
func (j *Job) Rebuild() bool {
	return j.Reason != ReasonNone
}

// UpdateReason recalculates why the job needs building by comparing
// source, object and recorded dependency timestamps.
func (j *Job) UpdateReason() {
	j.Reason = j.calcReason()
}

func (j *Job) calcReason() BuildReason {
	src, err := os.Stat(j.Src)
	if err != nil {
		return ReasonSrcMissing
	}
	obj, err := os.Stat(j.Obj)
	if err != nil {
		return ReasonObjMissing
	}
	if src.ModTime().After(obj.ModTime()) {
		return ReasonSrcNewer
	}
	return depReason(obj.ModTime(), j.Dep)
}

// depReason scans a gcc -MMD dependency file. Every token is a header
// path except the rule target (ends with a colon) and line
// continuations.
func depReason(objTime time.Time, depPath string) BuildReason {
	data, err := os.ReadFile(depPath)
	if err != nil {
		return ReasonNoDepFile
	}
	for _, part := range strings.Fields(string(data)) {
		if part == "\\" || strings.HasSuffix(part, ":") {
			continue
		}
		info, err := os.Stat(part)
		if err != nil {
			return ReasonDepMissing
		}
		if info.ModTime().After(objTime) {
			return ReasonDepNewer
		}
	}
	return ReasonNone
}

// FindJobs walks srcDir for compilable sources. Every job starts out
// forced; UpdateReason narrows that down for incremental builds.
// Directory entries come back sorted, so job order is stable across
// runs.
func FindJobs(srcDir, objDir, depDir string, recursive bool) ([]*Job, error) {
	var jobs []*Job
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errors.Wrapf(err, "reading %s failed", dir)
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if recursive {
					if err := walk(path); err != nil {
						return err
					}
				}
				continue
			}
			if !e.Type().IsRegular() {
				continue
			}
			kind, ok := jobKind(filepath.Ext(path))
			if !ok {
				continue
			}
			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return errors.Wrapf(err, "%s is outside %s", path, srcDir)
			}
			jobs = append(jobs, &Job{
				Kind:   kind,
				Src:    path,
				Obj:    filepath.Join(objDir, rel) + ".o",
				Dep:    filepath.Join(depDir, rel) + ".d",
				Reason: ReasonForced,
			})
		}
		return nil
	}
	if err := walk(srcDir); err != nil {
		return nil, err
	}
	return jobs, nil
}
