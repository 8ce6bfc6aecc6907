package compiler

import (
	"fmt"
	"os"

	"tail/pkg/bytecode"
)

// CompileFiles drives the full pipeline over a set of main source files:
// resolve includes, lex+parse every file the resolver finds, then generate
// one Image. Diagnostics are written to stderr in the §6.2 format as they
// are discovered; the returned error is non-nil iff compilation failed.
func CompileFiles(mainFiles []string) (*bytecode.Image, error) {
	resolved, err := Resolve(mainFiles)
	if err != nil {
		return nil, fmt.Errorf("include resolution: %w", err)
	}

	var units []Unit
	failed := false

	for _, rf := range resolved {
		src, err := os.ReadFile(rf.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", rf.Path, err)
			failed = true
			continue
		}

		tokens, lexErrs := Lex(string(src))
		for _, e := range lexErrs {
			fmt.Fprintln(os.Stderr, e)
		}
		if len(lexErrs) > 0 {
			failed = true
			continue
		}

		stmts, _, parseErrs := Parse(tokens, string(src))
		for _, e := range parseErrs {
			fmt.Fprintln(os.Stderr, e)
		}
		if len(parseErrs) > 0 {
			failed = true
			continue
		}

		units = append(units, Unit{Resolved: rf, Stmts: stmts})
	}

	if failed {
		return nil, fmt.Errorf("compilation aborted: lexer or parser errors")
	}

	img, genErrs := Generate(units)
	if len(genErrs) > 0 {
		for _, e := range genErrs {
			fmt.Fprintln(os.Stderr, e)
		}
		return nil, fmt.Errorf("compilation aborted: %d error(s)", len(genErrs))
	}

	return img, nil
}
