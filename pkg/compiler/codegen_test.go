package compiler

import (
	"bytes"
	"io"
	"os"
	"testing"

	"tail/pkg/bytecode"
	"tail/pkg/vm"
)

// runAndCapture runs src to completion and returns everything it printed to
// stdout via PRINT/PRINTLN.
func runAndCapture(t *testing.T, src string) string {
	t.Helper()
	tokens, lexErrs := Lex(src)
	if len(lexErrs) != 0 {
		t.Fatalf("lex errors: %v", lexErrs)
	}
	stmts, _, parseErrs := Parse(tokens, src)
	if len(parseErrs) != 0 {
		t.Fatalf("parse errors: %v", parseErrs)
	}
	unit := Unit{Resolved: ResolvedFile{Path: "main.tail", Stem: "main", IsMain: true}, Stmts: stmts}
	img, genErrs := Generate([]Unit{unit})
	if len(genErrs) != 0 {
		t.Fatalf("generate errors: %v", genErrs)
	}

	machine := vm.New(img)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	runErr := machine.Run()

	w.Close()
	os.Stdout = origStdout
	var buf bytes.Buffer
	io.Copy(&buf, r)

	if runErr != nil {
		t.Fatalf("runtime error: %v", runErr)
	}
	return buf.String()
}

func TestEndToEndArithmeticAndPrint(t *testing.T) {
	out := runAndCapture(t, `fn Main() { Console.println(2 + 3 * 4); }`)
	if out != "14\n" {
		t.Errorf("got %q", out)
	}
}

func TestEndToEndStringConcatViaPlus(t *testing.T) {
	out := runAndCapture(t, `fn Main() { Console.println("a" + "b" + "c"); }`)
	if out != "abc\n" {
		t.Errorf("got %q", out)
	}
}

func TestEndToEndStringifiedEquality(t *testing.T) {
	out := runAndCapture(t, `fn Main() { Console.println(1 == 1); Console.println("1" == 1); }`)
	if out != "true\ntrue\n" {
		t.Errorf("got %q — equality must compare stringified values", out)
	}
}

func TestEndToEndIfElse(t *testing.T) {
	out := runAndCapture(t, `fn Main() {
		mut int x = 5;
		if (x > 3) { Console.println("big"); } else { Console.println("small"); }
	}`)
	if out != "big\n" {
		t.Errorf("got %q", out)
	}
}

func TestEndToEndWhileLoop(t *testing.T) {
	out := runAndCapture(t, `fn Main() {
		mut int i = 0;
		while (i < 3) { Console.println(i); i = i + 1; }
	}`)
	if out != "0\n1\n2\n" {
		t.Errorf("got %q", out)
	}
}

func TestEndToEndForLoopWithBreakContinue(t *testing.T) {
	out := runAndCapture(t, `fn Main() {
		for (mut int i = 0; i < 5; i = i + 1) {
			if (i == 1) { continue; }
			if (i == 3) { break; }
			Console.println(i);
		}
	}`)
	if out != "0\n2\n" {
		t.Errorf("got %q", out)
	}
}

func TestEndToEndFunctionCallAndReturn(t *testing.T) {
	out := runAndCapture(t, `
		fn Add(int a, int b) { return a + b; }
		fn Main() { Console.println(Add(3, 4)); }
	`)
	if out != "7\n" {
		t.Errorf("got %q", out)
	}
}

func TestEndToEndShortCircuitAndSkipsRightSideSideEffects(t *testing.T) {
	out := runAndCapture(t, `
		fn Sideffect() { Console.println("called"); return true; }
		fn Main() {
			mut bool r = false && Sideffect();
			Console.println(r);
		}
	`)
	if out != "false\n" {
		t.Errorf("got %q — right side of && must not run when left is false", out)
	}
}

func TestEndToEndShortCircuitOrSkipsRightSideSideEffects(t *testing.T) {
	out := runAndCapture(t, `
		fn Sideffect() { Console.println("called"); return false; }
		fn Main() {
			mut bool r = true || Sideffect();
			Console.println(r);
		}
	`)
	if out != "true\n" {
		t.Errorf("got %q — right side of || must not run when left is true", out)
	}
}

func TestEndToEndLogicalKeywordSpellingShortCircuits(t *testing.T) {
	out := runAndCapture(t, `
		fn Sideffect() { Console.println("called"); return true; }
		fn Main() {
			mut bool r = false and Sideffect();
			Console.println(r);
			Console.println(not r);
		}
	`)
	if out != "false\ntrue\n" {
		t.Errorf("got %q — keyword-spelled \"and\"/\"not\" must behave like &&/!", out)
	}
}

func TestEndToEndArrayLiteralAndIndex(t *testing.T) {
	out := runAndCapture(t, `fn Main() {
		int nums[] = [10, 20, 30];
		Console.println(nums[1]);
	}`)
	if out != "20\n" {
		t.Errorf("got %q", out)
	}
}

func TestEndToEndArrayAllocZeroed(t *testing.T) {
	out := runAndCapture(t, `fn Main() {
		int nums[3];
		Console.println(nums[0]);
		Console.println(nums[2]);
	}`)
	if out != "0\n0\n" {
		t.Errorf("got %q", out)
	}
}

func TestEndToEndGlobalPreambleRunsBeforeMain(t *testing.T) {
	out := runAndCapture(t, `
		mut int counter = 41;
		fn Main() { Console.println(counter + 1); }
	`)
	if out != "42\n" {
		t.Errorf("got %q", out)
	}
}

func TestRepeatedStringLiteralSharesOneConstantSlot(t *testing.T) {
	src := `fn Main() { Console.println("same"); Console.println("same"); }`
	tokens, _ := Lex(src)
	stmts, _, _ := Parse(tokens, src)
	unit := Unit{Resolved: ResolvedFile{Path: "main.tail", Stem: "main", IsMain: true}, Stmts: stmts}
	img, errs := Generate([]Unit{unit})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	n := 0
	for _, c := range img.Constants {
		if c.Tag == bytecode.TagString {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected one shared constant-pool slot for the repeated string literal, got %d", n)
	}
}

func TestGenerateReportsMissingMain(t *testing.T) {
	tokens, _ := Lex(`fn NotMain() { }`)
	stmts, _, _ := Parse(tokens, `fn NotMain() { }`)
	unit := Unit{Resolved: ResolvedFile{Path: "main.tail", Stem: "main", IsMain: true}, Stmts: stmts}
	_, errs := Generate([]Unit{unit})
	if len(errs) == 0 {
		t.Fatal("expected an error for a missing Main")
	}
}

func TestGenerateReportsUndefinedFunctionCall(t *testing.T) {
	tokens, _ := Lex(`fn Main() { Ghost(); }`)
	stmts, _, _ := Parse(tokens, `fn Main() { Ghost(); }`)
	unit := Unit{Resolved: ResolvedFile{Path: "main.tail", Stem: "main", IsMain: true}, Stmts: stmts}
	_, errs := Generate([]Unit{unit})
	if len(errs) == 0 {
		t.Fatal("expected an error for a call to an undefined function")
	}
}

func TestQualifiedNameResolutionAcrossModules(t *testing.T) {
	libTokens, _ := Lex(`fn Square(int n) { return n * n; }`)
	libStmts, _, _ := Parse(libTokens, `fn Square(int n) { return n * n; }`)
	libUnit := Unit{Resolved: ResolvedFile{Path: "mathlib.tail", Stem: "mathlib", IsMain: false}, Stmts: libStmts}

	mainSrc := `fn Main() { Console.println(mathlib_Square(5)); }`
	mainTokens, _ := Lex(mainSrc)
	mainStmts, _, _ := Parse(mainTokens, mainSrc)
	mainUnit := Unit{Resolved: ResolvedFile{Path: "main.tail", Stem: "main", IsMain: true}, Stmts: mainStmts}

	img, errs := Generate([]Unit{libUnit, mainUnit})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	machine := vm.New(img)
	if err := machine.Run(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
}
