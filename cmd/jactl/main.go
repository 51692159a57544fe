// Command jactl is the reference CLI embedder: run a script file (or
// stdin) to completion with RunSync. -checkpoint <file> opens a SQLite
// checkpoint store beside the run and reports what it holds afterwards;
// -resume <file> <handle> loads a stored continuation and reports its
// depth. The CLI never writes a continuation to the store and never
// resumes one.
//
// Grounded on the teacher's cmd/funxy/main.go: flag-prefixed subcommand
// dispatch (handleX() bool returning whether it consumed os.Args),
// top-level panic recovery gated on a DEBUG env var, and reading source
// from either a file argument or stdin when none is given.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/jactl-lang/jactl/internal/checkpoint"
	"github.com/jactl-lang/jactl/internal/jactl"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "this is a bug, please report it")
			os.Exit(1)
		}
	}()

	if handleHelp() {
		return
	}
	if handleResume() {
		return
	}

	args := os.Args
	source, file, err := readSource(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	if source == "" {
		return
	}

	run(source, file, checkpointPathFrom(args))
}

func handleHelp() bool {
	if len(os.Args) < 2 {
		return false
	}
	if os.Args[1] != "-help" && os.Args[1] != "--help" && os.Args[1] != "help" {
		return false
	}
	fmt.Println("usage: jactl [-checkpoint <file>] [-resume <file> <handle>] <script> | jactl < script")
	fmt.Println()
	fmt.Println("  -checkpoint <file>   open a SQLite checkpoint store and report its contents after the run")
	fmt.Println("  -resume <file> <handle>   load a checkpointed continuation and report its depth")
	return true
}

// handleResume loads the continuation stored under handle, deletes it
// from the store and prints its depth. It does not run the continuation:
// no result is delivered to it and no script code executes.
func handleResume() bool {
	if len(os.Args) < 2 || os.Args[1] != "-resume" {
		return false
	}
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: jactl -resume <store-file> <handle>")
		os.Exit(1)
	}
	storePath, handle := os.Args[2], os.Args[3]

	ctx := context.Background()
	store, err := checkpoint.Open(ctx, storePath)
	if err != nil {
		fatalf("opening checkpoint store: %s", err)
	}
	defer store.Close()

	cont, err := store.Load(ctx, checkpoint.Handle(handle))
	if err != nil {
		fatalf("loading checkpoint %s: %s", handle, err)
	}
	if err := store.Delete(ctx, checkpoint.Handle(handle)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not delete consumed checkpoint %s: %s\n", handle, err)
	}

	fmt.Printf("resumed continuation at depth %d (result delivery from a live host event is required to proceed further)\n", cont.Depth())
	return true
}

// checkpointPathFrom extracts the file path the "-checkpoint <file>"
// flag names, if present, stripping it from further argument handling.
func checkpointPathFrom(args []string) string {
	for i, a := range args {
		if a == "-checkpoint" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func readSource(args []string) (source, file string, err error) {
	var path string
	for i := 1; i < len(args); i++ {
		if args[i] == "-checkpoint" {
			i++
			continue
		}
		path = args[i]
	}

	if path == "" {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return "", "", fmt.Errorf("usage: %s [-checkpoint <file>] <script> or pipe from stdin", args[0])
		}
		data, readErr := io.ReadAll(os.Stdin)
		if readErr != nil {
			return "", "", fmt.Errorf("reading stdin: %w", readErr)
		}
		return string(data), "<stdin>", nil
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, readErr)
	}
	return string(data), path, nil
}

// run compiles source and executes it to completion with RunSync,
// blocking this process across any suspension. When checkpointPath is set
// the run goes through runCheckpointed instead, which executes the script
// the same way.
func run(source, file, checkpointPath string) {
	colorize := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	c := jactl.NewContext()
	script, err := c.CompileScript(source, file)
	if err != nil {
		printCompileError(err, colorize)
		os.Exit(1)
	}

	if checkpointPath != "" {
		runCheckpointed(script, checkpointPath, colorize)
		return
	}

	result := script.RunSync()
	if result.Err != nil {
		printRuntimeError(result.Err, colorize)
		os.Exit(1)
	}
	if result.Value != nil {
		fmt.Println(result.Value.String())
	}
}

// runCheckpointed opens the checkpoint store at path, runs the script to
// completion with RunSync and then prints the store's entry count and
// size when it holds anything. It saves nothing: a suspension is waited
// out in process, not written to the store.
func runCheckpointed(script *jactl.Script, path string, colorize bool) {
	ctx := context.Background()
	store, err := checkpoint.Open(ctx, path)
	if err != nil {
		fatalf("opening checkpoint store: %s", err)
	}
	defer store.Close()

	result := script.RunSync()
	if result.Err != nil {
		printRuntimeError(result.Err, colorize)
		os.Exit(1)
	}
	if result.Value != nil {
		fmt.Println(result.Value.String())
	}
	count, size, err := store.Stats(ctx)
	if err == nil && count > 0 {
		fmt.Printf("checkpoint store now holds %d continuation(s), %s\n", count, size)
	}
}

func printCompileError(err error, colorize bool) {
	if cerr, ok := err.(*jactl.CompileError); ok {
		for _, e := range cerr.Errors {
			fmt.Fprintln(os.Stderr, colorLine(colorize, e.Error()))
		}
		return
	}
	fmt.Fprintln(os.Stderr, colorLine(colorize, err.Error()))
}

func printRuntimeError(err error, colorize bool) {
	fmt.Fprintln(os.Stderr, colorLine(colorize, err.Error()))
}

func colorLine(colorize bool, msg string) string {
	if !colorize {
		return msg
	}
	const red, reset = "\x1b[31m", "\x1b[0m"
	return red + msg + reset
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
