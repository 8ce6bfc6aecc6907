// Command tailc compiles one or more .tail source files into a single
// .tailc bytecode image.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tail/pkg/bytecode"
	"tail/pkg/compiler"
)

func main() {
	outPath := flag.String("o", "", "output path (default: <first_input_stem>.tailc)")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: tailc <file1.tail> [file2.tail ...] [-o output.tailc]")
		os.Exit(1)
	}
	for _, f := range inputs {
		if !strings.HasSuffix(f, ".tail") {
			fmt.Fprintf(os.Stderr, "input %q must have a .tail suffix\n", f)
			os.Exit(1)
		}
	}

	img, err := compiler.CompileFiles(inputs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := *outPath
	if out == "" {
		out = defaultOutputPath(inputs[0])
	}

	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output file %q: %v\n", out, err)
		os.Exit(1)
	}
	defer f.Close()

	if err := bytecode.Serialize(img, f); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write image: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("compiled %d function(s) -> %s\n", len(img.Functions), out)
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	return strings.TrimSuffix(inPath, ext) + ".tailc"
}
