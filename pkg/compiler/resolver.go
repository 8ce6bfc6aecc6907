package compiler

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"tail/pkg/utils"
)

var includeLineRe = regexp.MustCompile(`include\s+([A-Za-z_][A-Za-z0-9_]*)\s*;`)

// ResolvedFile is one entry in the driver's ordered compilation list.
type ResolvedFile struct {
	Path   string
	Stem   string
	IsMain bool
}

// Resolve walks the include graph reachable from mainFiles and returns the
// full ordered compilation list per §4.3: a fixed search-path order per
// include name, each file visited at most once (keyed by the bare include
// name, not by resolved path), discovery order preserved. A missing include
// is a warning, written to stderr, not a hard failure — the function
// keyword it would have defined simply never gets registered, which
// surfaces later as a "Function not found" compile error.
func Resolve(mainFiles []string) ([]ResolvedFile, error) {
	var out []ResolvedFile
	visited := make(map[string]bool)

	for _, mf := range mainFiles {
		stem := stemOf(mf)
		if visited[stem] {
			continue
		}
		visited[stem] = true
		out = append(out, ResolvedFile{Path: mf, Stem: stem, IsMain: true})

		if err := resolveIncludesOf(mf, visited, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func resolveIncludesOf(path string, visited map[string]bool, out *[]ResolvedFile) error {
	names, err := scanIncludes(path)
	if err != nil {
		return err
	}
	cur := filepath.Dir(path)

	for _, name := range names {
		if visited[name] {
			continue
		}
		visited[name] = true

		found, ok := searchInclude(name, cur)
		if !ok {
			searchedNear := cur
			if _, parentDir, err := utils.GetPathInfo(path); err == nil {
				searchedNear = parentDir
			}
			fmt.Fprintf(os.Stderr, "warning: include %q not found (searched near %s)\n", name, searchedNear)
			continue
		}
		*out = append(*out, ResolvedFile{Path: found, Stem: name, IsMain: false})
		if err := resolveIncludesOf(found, visited, out); err != nil {
			return err
		}
	}
	return nil
}

// searchInclude tries the fixed path order from §4.3: the bare name, then
// cur-relative (the directory of the file that issued the include), then
// three literal cwd-relative fallbacks that never involve cur.
func searchInclude(name, cur string) (string, bool) {
	candidates := []string{
		name + ".tail",
		filepath.Join(cur, name+".tail"),
		filepath.Join("..", "include", name+".tail"),
		filepath.Join("include", name+".tail"),
		filepath.Join(".", "include", name+".tail"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

// scanIncludes is the pre-parse textual pass: it finds every `include
// name;` line without needing a full lex/parse, which is what lets the
// driver discover the compilation list before any file is actually parsed.
func scanIncludes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "include") {
			continue
		}
		for _, m := range includeLineRe.FindAllStringSubmatch(line, -1) {
			names = append(names, m[1])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
