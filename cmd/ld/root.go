package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xyproto/ld/internal/disasm"
	"github.com/xyproto/ld/internal/link"
)

var (
	outPath    string
	ignoredG   bool
	disasmFlag bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ld [flags] input...",
		Short: "A minimal static linker for i386 ELF objects and archives",
		Long: `ld links one or more relocatable i386 ELF32 objects and Unix ar
archives into a single executable ELF32 image.

A path ending in .a is treated as an archive; archive members are pulled
in lazily, driven by the archive's symbol index. Everything else is
treated as a relocatable object.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runLink,
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output path (default a.out)")
	cmd.Flags().BoolVarP(&ignoredG, "debug", "g", false, "accepted and ignored")
	cmd.Flags().BoolVarP(&disasmFlag, "disasm", "S", false, "print a disassembly of the linked text segment to stderr")
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file overriding segment base addresses and page size")

	return cmd
}

func runLink(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	l := link.New(cfg)

	for _, path := range args {
		mem, err := os.ReadFile(path)
		if err != nil {
			fatal(err)
		}
		if strings.HasSuffix(path, ".a") {
			if err := l.IngestArchive(path, mem); err != nil {
				fatal(err)
			}
			continue
		}
		if err := l.IngestObject(path, mem); err != nil {
			fatal(err)
		}
	}

	image, err := l.Link()
	if err != nil {
		fatal(err)
	}

	out := outputPath(outPath)
	if err := os.WriteFile(out, image, 0o700); err != nil {
		fatal(err)
	}
	if verbose() {
		warn("wrote %s (%d bytes)", out, len(image))
	}

	if disasmFlag {
		dumpDisasm(l, image)
	}
	return nil
}

// dumpDisasm disassembles the text segment of the freshly linked image
// (the first program header, per Layout's emission order) to stderr.
func dumpDisasm(l *link.Linker, image []byte) {
	if len(l.Phdrs) == 0 {
		return
	}
	text := l.Phdrs[0]
	if int(text.Offset+text.FileSz) > len(image) {
		warn("disasm: text segment out of range in output image")
		return
	}
	body := image[text.Offset : text.Offset+text.FileSz]
	if err := disasm.Dump(os.Stderr, body, text.VAddr); err != nil {
		warn("disasm: %v", err)
	}
}
