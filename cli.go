package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
)

// RunCLI implements the `asm [options] <source-file>` contract of
// spec §6: -o, -v/--verbose, --version, --help, and -- end-of-options,
// modeled on the teacher's flag.FlagSet-based main() rather than a
// cobra/subcommand framework the corpus does not reach for here.
func RunCLI(args []string) int {
	fs := flag.NewFlagSet("asm", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		output      = fs.String("o", "", "output path (default: source path with extension replaced by .o)")
		verbose     = fs.Bool("v", false, "increase verbosity")
		verboseLong = fs.Bool("verbose", false, "increase verbosity")
		version     = fs.Bool("version", false, "print the version and exit")
		help        = fs.Bool("help", false, "show the manual page")
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: asm [options] <source-file>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help {
		return execManPage()
	}

	if *version {
		fmt.Println(versionString)
		return 0
	}

	VerboseMode = VerboseMode || *verbose || *verboseLong

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "asm: missing source file")
		fs.Usage()
		return 1
	}
	source := rest[0]

	outPath := *output
	if outPath == "" {
		outPath = defaultOutputPath(source)
	}

	return assembleAndWrite(source, outPath)
}

// assembleAndWrite runs the pipeline and, on failure, renders the
// diagnostic against the original source the way §7 describes before
// returning the process's exit code.
func assembleAndWrite(source, outPath string) int {
	obj, err := Assemble(source)
	if err != nil {
		renderFailure(source, err)
		return 1
	}

	if err := os.WriteFile(outPath, obj.Bytes, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "asm: writing %s: %v\n", outPath, err)
		return 1
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "asm: wrote %s (%d bytes)\n", outPath, len(obj.Bytes))
	}
	return 0
}

// renderFailure prints a structured diagnostic if the error originated
// inside the pipeline, or a plain message for filesystem-level
// failures (missing file, permission denied).
func renderFailure(source string, err error) {
	if asmErr, ok := err.(*AsmError); ok {
		src, readErr := os.ReadFile(source)
		if readErr == nil {
			asmErr.Render(os.Stderr, source, src)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "asm: %v\n", err)
}

// execManPage execs the system manual page, mirroring the teacher's
// use of os/exec to shell out rather than hand-rolling usage text.
func execManPage() int {
	cmd := exec.Command("man", "viua-asm")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "asm: viua-asm(1) is not installed\n")
		return 1
	}
	return 0
}
