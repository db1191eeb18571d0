package build

import (
	"reflect"
	"testing"

	"github.com/RicBent/magwi/hook"
)

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func TestNewToolchain(t *testing.T) {
	t.Setenv("MAGWI_CC", "test-gcc")
	t.Setenv("MAGWI_CXX", "test-g++")
	tc := NewToolchain()

	if tc.Compiler[JobC] != "test-gcc" || tc.Compiler[JobASM] != "test-gcc" {
		t.Errorf("c/asm compiler = %s/%s, want test-gcc", tc.Compiler[JobC], tc.Compiler[JobASM])
	}
	if tc.Compiler[JobCPP] != "test-g++" || tc.Linker != "test-g++" {
		t.Errorf("c++ compiler/linker = %s/%s, want test-g++", tc.Compiler[JobCPP], tc.Linker)
	}

	// per-language flag sets must not leak into each other
	if contains(tc.Flags[JobC], "-fno-exceptions") {
		t.Error("c flags contain -fno-exceptions")
	}
	if !contains(tc.Flags[JobCPP], "-fno-rtti") {
		t.Error("c++ flags missing -fno-rtti")
	}
	if contains(tc.Flags[JobASM], "-Wall") {
		t.Error("asm flags contain -Wall")
	}
	if !contains(tc.Flags[JobASM], "assembler-with-cpp") {
		t.Error("asm flags missing assembler-with-cpp")
	}
}

func TestCompileArgs(t *testing.T) {
	tc := NewToolchain()
	job := &Job{
		Kind: JobC,
		Src:  "source/a.c",
		Obj:  "build/obj/a.c.o",
		Dep:  "build/dep/a.c.d",
	}
	args := tc.compileArgs(job)

	head := []string{"-MMD", "-MF", "build/dep/a.c.d", "-iquote", "include"}
	if !reflect.DeepEqual(args[:len(head)], head) {
		t.Errorf("args head = %v, want %v", args[:len(head)], head)
	}
	tail := []string{
		"-D__mw_symbol_safe_filename=" + hook.UnitID("source/a.c"),
		"-c", "source/a.c", "-o", "build/obj/a.c.o",
	}
	if !reflect.DeepEqual(args[len(args)-len(tail):], tail) {
		t.Errorf("args tail = %v, want %v", args[len(args)-len(tail):], tail)
	}
}
