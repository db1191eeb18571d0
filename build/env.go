package build

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"

	"github.com/RicBent/magwi/hook"
)

// Toolchain locates the cross compilers and their per-language flag
// sets. MAGWI_CC and MAGWI_CXX override the compiler names.
type Toolchain struct {
	Compiler map[JobKind]string
	Flags    map[JobKind][]string
	Linker   string
}

// NewToolchain returns the arm-none-eabi setup used for 3DS code.
func NewToolchain() *Toolchain {
	cc := env.Str("MAGWI_CC", "arm-none-eabi-gcc")
	cxx := env.Str("MAGWI_CXX", "arm-none-eabi-g++")

	common := []string{
		"-iquote", "include", "-isystem", "include/sys", "-isystem", "include/sys/clib",
		"-march=armv6k+fp", "-mtune=mpcore", "-mfloat-abi=hard", "-mtp=soft",
		"-fdiagnostics-color",
	}
	c := append(append([]string(nil), common...),
		"-Wall", "-O3", "-mword-relocations", "-fshort-wchar",
		"-fomit-frame-pointer", "-ffunction-sections", "-nostdinc")
	cpp := append(append([]string(nil), c...), "-fno-exceptions", "-fno-rtti")
	asm := append(append([]string(nil), common...), "-x", "assembler-with-cpp")

	return &Toolchain{
		Compiler: map[JobKind]string{JobC: cc, JobCPP: cxx, JobASM: cc},
		Flags:    map[JobKind][]string{JobC: c, JobCPP: cpp, JobASM: asm},
		Linker:   cxx,
	}
}

// DefaultJobs is how many compiles run in parallel when -j is not
// given. MAGWI_JOBS overrides the cpu count.
func DefaultJobs() int {
	return env.Int("MAGWI_JOBS", runtime.NumCPU())
}

func (tc *Toolchain) compileArgs(job *Job) []string {
	args := []string{"-MMD", "-MF", job.Dep}
	args = append(args, tc.Flags[job.Kind]...)
	args = append(args,
		"-D__mw_symbol_safe_filename="+hook.UnitID(job.Src),
		"-c", job.Src, "-o", job.Obj)
	return args
}

// Compile runs one compile job. The returned string carries the
// compiler's diagnostics, which may be non-empty even on success.
func (tc *Toolchain) Compile(job *Job) (string, error) {
	if err := os.MkdirAll(filepath.Dir(job.Obj), 0755); err != nil {
		return "", errors.Wrap(err, "creating object directory failed")
	}
	if err := os.MkdirAll(filepath.Dir(job.Dep), 0755); err != nil {
		return "", errors.Wrap(err, "creating dependency directory failed")
	}

	var stderr bytes.Buffer
	cmd := exec.Command(tc.Compiler[job.Kind], tc.compileArgs(job)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok && stderr.Len() > 0 {
			return "", errors.New(stderr.String())
		}
		return "", errors.Wrapf(err, "running %s failed", tc.Compiler[job.Kind])
	}
	return stderr.String(), nil
}

// Link links the objects into the output ELF using the generated hook
// linker script. Linker diagnostics come back even on success.
func (tc *Toolchain) Link(objs []string) (string, error) {
	args := []string{
		"-nodefaultlibs", "-nostartfiles",
		"-march=armv6k+fp", "-mtune=mpcore", "-mfloat-abi=hard", "-mtp=soft",
		"-T", symbolsScript, "-T", linkerScript,
		"-Wl,-Map=" + mapPath,
		"-fdiagnostics-color",
	}
	args = append(args, objs...)
	args = append(args, "-o", elfPath)

	var stderr bytes.Buffer
	cmd := exec.Command(tc.Linker, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			err = errors.New("linking failed")
		} else {
			err = errors.Wrap(err, "running linker failed")
		}
	}
	return stderr.String(), err
}
