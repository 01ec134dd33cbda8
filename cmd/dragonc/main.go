package main

import (
	"flag"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/totillity/dragon"
	"github.com/totillity/dragon/ascii"
)

// printDiagnostic renders a compile error the way errors.go's Render
// produces it, then recolors the "File:"/caret/"Error:" lines with the
// ascii package's default theme so failures stand out on a terminal.
func printDiagnostic(err error, path string) {
	diag, ok := err.(dragon.Diagnostic)
	if !ok {
		log.Fatalf("Can't compile %s: %s", path, err.Error())
	}
	src, readErr := os.ReadFile(path)
	if readErr != nil {
		src = nil
	}
	rendered := diag.Render(path, string(src))
	for _, line := range splitLines(rendered) {
		switch {
		case hasPrefix(line, "Error: "):
			os.Stderr.WriteString(ascii.Color(ascii.DefaultTheme.Error, "%s", line) + "\n")
		case hasPrefix(line, "File: "):
			os.Stderr.WriteString(ascii.Color(ascii.DefaultTheme.Accent, "%s", line) + "\n")
		default:
			os.Stderr.WriteString(ascii.Color(ascii.DefaultTheme.Span, "%s", line) + "\n")
		}
	}
	os.Exit(1)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func main() {
	var (
		run      = flag.Bool("run", false, "Compile, link, and execute the resulting binary")
		showC    = flag.Bool("show_c", false, "Print the generated C source to stdout instead of writing files")
		compiler = flag.String("compiler", "clang", "C compiler used to build the generated sources")
		outDir   = flag.String("out", "", "Directory to write generated .h/.c files into (defaults to the source's own directory)")
	)
	flag.Parse()

	cfg := dragon.NewConfig()
	cfg.SetBool("compile.run", *run)
	cfg.SetBool("compile.show_c", *showC)
	cfg.SetString("compile.compiler", *compiler)

	if flag.NArg() != 1 {
		log.Fatal("Usage: dragonc [--run] [--show_c] [--compiler=clang] <file.drgn>")
	}
	sourcePath := flag.Arg(0)

	units, err := dragon.CompileFile(sourcePath)
	if err != nil {
		printDiagnostic(err, sourcePath)
	}

	if cfg.GetBool("compile.show_c") {
		for _, u := range units {
			os.Stdout.WriteString(u.Header)
			os.Stdout.WriteString(u.Source)
		}
		return
	}

	dir := *outDir
	if dir == "" {
		abs, err := filepath.Abs(sourcePath)
		if err != nil {
			log.Fatalf("Can't resolve %s: %s", sourcePath, err.Error())
		}
		dir = filepath.Dir(abs)
	}
	cfg.SetString("compile.output_dir", dir)

	if err := dragon.WriteUnits(units, dir); err != nil {
		log.Fatalf("Can't write generated sources: %s", err.Error())
	}

	if !cfg.GetBool("compile.run") {
		return
	}

	cArgs := []string{"-o", "a.out", "dragon.c"}
	for _, u := range units {
		cArgs = append(cArgs, filepath.Base(u.SourcePath()))
	}

	build := exec.Command(cfg.GetString("compile.compiler"), cArgs...)
	build.Dir = dir
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		log.Fatalf("C compiler failed: %s", err.Error())
	}

	runBin := exec.Command(filepath.Join(dir, "a.out"))
	runBin.Stdout = os.Stdout
	runBin.Stderr = os.Stderr
	runBin.Stdin = os.Stdin
	if err := runBin.Run(); err != nil {
		log.Fatalf("Program exited with error: %s", err.Error())
	}
}
