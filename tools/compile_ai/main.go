// compile_ai compiles .ai scripts to .aic program files (CBOR).
// Scripts are checked against the sandbox capabilities, so call syntax
// errors are reported here rather than at load time.
//
// Usage: go run tools/compile_ai/main.go [-o outdir] [-disasm] [-config ai.toml] a.ai b.ai ...
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/config"
	"github.com/ailang/ai/pkg/engine"
	"github.com/ailang/ai/pkg/sandbox"
)

func main() {
	outDir := flag.String("o", ".", "Output directory")
	disasm := flag.Bool("disasm", false, "Print disassembly")
	cfgPath := flag.String("config", "", "Sandbox configuration (extra properties)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: compile_ai [-o outdir] [-disasm] [-config file] <file.ai>...")
		os.Exit(1)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	failed := false
	for _, path := range flag.Args() {
		if err := compileFile(path, *outDir, *disasm, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error compiling %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func compileFile(path, outDir string, showDisasm bool, cfg *config.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	baseName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	// A fresh sandbox per file: the compiled program takes ownership of
	// the registered capabilities.
	sb, err := sandbox.New(cfg, io.Discard)
	if err != nil {
		return err
	}
	e := engine.New()
	if err := sb.Register(e); err != nil {
		return err
	}
	prog, err := e.Compile(path, string(data))
	if err != nil {
		return err
	}

	if showDisasm {
		fmt.Printf("=== %s (%d ops, groups: %s) ===\n", baseName, len(prog.Code), strings.Join(prog.Groups(), ", "))
		fmt.Print(bytecode.Disassemble(prog.Code))
	}

	out, err := bytecode.Marshal(prog.Code)
	if err != nil {
		return err
	}
	outPath := filepath.Join(outDir, baseName+".aic")
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	fmt.Printf("%s: %d ops, %d bytes -> %s\n", baseName, len(prog.Code), len(out), outPath)
	return nil
}
