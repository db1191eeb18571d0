package build

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/RicBent/magwi/hook"
)

// Replace is one section hook: the linker places the section's payload
// at Addr under its original name.
type Replace struct {
	Name string
	Addr uint32
}

const linkerScriptSections = `    {
        __mw_text_start = .;
        *(.text);
        *(.text.*);
        *(.rodata);
        *(.rodata.*);
        __init_array_start = .;
        *(.init_array);
        *(.init_array.*);
        __init_array_end = .;
        __fini_array_start = .;
        *(.fini_array);
        *(.fini_array.*);
        __fini_array_end = .;
        *(.data);
        *(.data.*);
        *(.bss);
        *(.bss.*);
        __mw_text_end = .;
    }
`

// WriteLinkerScript emits the generated linker script: one output
// section per replace hook, the collected loader section at its fixed
// address, and the relinked text at the custom text address.
func WriteLinkerScript(w io.Writer, replaces []Replace, loaderAddr, customTextAddr uint32) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("SECTIONS\n{\n    /* Hook Generated Sections */\n")
	for _, r := range replaces {
		fmt.Fprintf(bw, "    %s 0x%x : { *(%s); }\n", r.Name, r.Addr, r.Name)
	}
	fmt.Fprintf(bw, "\n    %s 0x%x : { *(%s); *(%s.*); }\n",
		hook.LoaderSection, loaderAddr, hook.LoaderSection, hook.LoaderSection)
	fmt.Fprintf(bw, "    .text 0x%x :\n", customTextAddr)
	bw.WriteString(linkerScriptSections)
	bw.WriteString("}\n")
	return errors.Wrap(bw.Flush(), "writing linker script failed")
}
