// Package gen emits the include file that declares the hook macros for
// C, C++ and assembly sources.
package gen

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/RicBent/magwi/hook"
)

const headerPrologue = `#pragma once

#ifndef __INTELLISENSE__

    #if __GNUC__ < 11
        #error "magwi requires GCC >= 11.0"
    #endif

    #ifndef __mw_symbol_safe_filename
        #error "__mw_symbol_safe_filename must be defined"
    #endif

#endif

#ifndef __ASSEMBLER__

    #define __mw_hook_label_impl2(type, arg, file, line, counter) \
        __attribute__((used, __symver__("__mw_hook_" #type "$" #arg "$" #file "$" #line "$" #counter "@%d")))

    #define __mw_hook_label_impl(type, arg, file, line, counter) \
        __mw_hook_label_impl2(type, arg, file, line, counter)

    #define __mw_hook_label(type, arg) \
        __mw_hook_label_impl(type, arg, __mw_symbol_safe_filename, __LINE__, __COUNTER__)

    #define __mw_section_impl2(type, arg, file, line, counter) \
        __attribute__((used, section(".__mw_hook_" #type "$" #arg "$" #file "$" #line "$" #counter)))

    #define __mw_section_impl(type, arg, file, line, counter) \
        __mw_section_impl2(type, arg, file, line, counter)

    #define __mw_section(type, arg) \
        __mw_section_impl(type, arg, __mw_symbol_safe_filename, __LINE__, __COUNTER__)

    #define mw_replace(address) __mw_section(replace, address)

    #define mw_loader_code \
        __attribute__((section(".mw_loader_text"), optimize("Os")))

    #ifdef __cplusplus
        #define __mw_extern extern "C"
    #else
        #define __mw_extern extern
    #endif

    __mw_extern char __mw_text_start;
    __mw_extern char __mw_text_end;

#else

    #define __mw_hook_label_impl2(type, arg, file, line, counter) .global __mw_hook_##type##$##arg##$##file##$##line##$##counter; __mw_hook_##type##$##arg##$##file##$##line##$##counter:

    #define __mw_hook_label_impl(type, arg, file, line, counter) \
        __mw_hook_label_impl2(type, arg, file, line, counter)

    #define __mw_hook_label(type, arg) \
        __mw_hook_label_impl(type, arg, __mw_symbol_safe_filename, __LINE__, __COUNTER__)

    #define __mw_section_impl2(type, arg, file, line, counter) \
        .pushsection .__mw_hook_##type##$##arg##$##file##$##line##$##counter

    #define __mw_section_impl(type, arg, file, line, counter) \
        __mw_section_impl2(type, arg, file, line, counter)

    #define __mw_section(type, arg) \
        __mw_section_impl(type, arg, __mw_symbol_safe_filename, __LINE__, __COUNTER__)

    #define mw_replace(address) __mw_section(replace, address)
    #define mw_replace_end .popsection

    #define mw_loader_section .mw_loader_text

#endif

`

// labelGroup buckets kinds so the emitted macro list gets a blank line
// between plain branches, linking branches, pre/post and symptr.
func labelGroup(k hook.Kind) string {
	switch k.Class {
	case hook.ClassBranch:
		if k.Link {
			return "bl"
		}
		return "b"
	case hook.ClassPre, hook.ClassPost:
		return "call"
	}
	return k.Name
}

// WriteHeader emits the front-end include. The macro list follows the
// hook taxonomy, so the two can never drift apart.
func WriteHeader(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, headerPrologue, hook.Version)

	group := ""
	for _, k := range hook.LabelKinds() {
		if g := labelGroup(k); g != group {
			if group != "" {
				bw.WriteString("\n")
			}
			group = g
		}
		fmt.Fprintf(bw, "#define mw_%s(address) __mw_hook_label(%s, address)\n", k.Name, k.Name)
	}
	return errors.Wrap(bw.Flush(), "writing header failed")
}
