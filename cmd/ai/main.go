// ai - compile and run Ai robot scripts in the grid sandbox
//
// Usage:
//
//	ai [flags] script.ai     compile and run source
//	ai [flags] script.aic    run a compiled program (see -o)
//	ai [flags] script.air    run textual IR (as printed by -disasm)
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/ailang/ai/pkg/ast"
	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/config"
	"github.com/ailang/ai/pkg/engine"
	"github.com/ailang/ai/pkg/interpreter"
	"github.com/ailang/ai/pkg/parser"
	"github.com/ailang/ai/pkg/sandbox"
	"github.com/ailang/ai/pkg/telemetry"

	_ "github.com/tliron/commonlog/simple"
)

var (
	flagAST     = flag.Bool("ast", false, "print the syntax tree and exit")
	flagDisasm  = flag.Bool("disasm", false, "print the compiled program and exit")
	flagOut     = flag.String("o", "", "write the compiled program (CBOR) to this file and exit")
	flagConfig  = flag.String("config", "", "sandbox configuration (.toml, .yaml)")
	flagTicks   = flag.Int("ticks", 0, "tick limit (0 = from config)")
	flagBudget  = flag.Int("budget", 0, "instructions per tick (0 = from config)")
	flagRecord  = flag.String("record", "", "record telemetry to this SQLite database")
	flagMap     = flag.Bool("map", false, "print the world before and after the run")
	flagVerbose = flag.Int("v", 0, "log verbosity (-4 none ... 2 debug)")
	flagLog     = flag.String("log", "", "log file (default stderr)")
)

func main() {
	flag.Parse()

	if *flagLog != "" {
		commonlog.Configure(*flagVerbose, flagLog)
	} else {
		commonlog.Configure(*flagVerbose, nil)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ai [flags] <script.ai|script.aic|script.air>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		if cfg, err = config.Load(*flagConfig); err != nil {
			return err
		}
	}
	if *flagTicks > 0 {
		cfg.Run.Ticks = *flagTicks
	}
	if *flagBudget > 0 {
		cfg.Run.Budget = *flagBudget
	}

	sb, err := sandbox.New(cfg, os.Stdout)
	if err != nil {
		return err
	}

	interp, err := load(path, sb)
	if err != nil {
		return err
	}
	if interp == nil {
		// -ast, -disasm or -o
		return nil
	}

	sched := sandbox.NewScheduler(sb, interp, cfg.Run.Budget)
	sched.Script = filepath.Base(path)
	if *flagRecord != "" {
		rec, err := telemetry.Open(*flagRecord)
		if err != nil {
			return err
		}
		defer rec.Close()
		sched.Recorder = rec
	}

	if *flagMap {
		fmt.Print(sb.World.Render())
	}
	state, err := sched.Run(cfg.Run.Ticks)
	if *flagMap {
		fmt.Println()
		fmt.Print(sb.World.Render())
	}
	if err != nil {
		return err
	}
	if state != interpreter.Stop {
		return fmt.Errorf("%s did not finish within %d ticks", path, cfg.Run.Ticks)
	}
	return nil
}

// load builds an interpreter for path with the sandbox registered. It
// returns nil when an inspection flag consumed the program instead.
func load(path string, sb *sandbox.Sandbox) (*interpreter.Interpreter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var interp *interpreter.Interpreter
	switch strings.ToLower(filepath.Ext(path)) {
	case ".aic":
		if interp, err = engine.FromCompiled(data); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		if err := sb.Register(interp); err != nil {
			return nil, err
		}
	case ".air":
		if interp, err = engine.FromIR(string(data)); err != nil {
			return nil, fmt.Errorf("assembling %s: %w", path, err)
		}
		if err := sb.Register(interp); err != nil {
			return nil, err
		}
	default:
		if *flagAST {
			stmts, err := parser.Parse(path, string(data))
			if err != nil {
				return nil, err
			}
			fmt.Println(ast.Print(stmts))
			return nil, nil
		}
		e := engine.New()
		if err := sb.Register(e); err != nil {
			return nil, err
		}
		if interp, err = e.Convert(path, string(data)); err != nil {
			return nil, err
		}
	}

	code := interp.Program().Code
	if *flagDisasm {
		printDisasm(code)
		return nil, nil
	}
	if *flagOut != "" {
		out, err := bytecode.Marshal(code)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(*flagOut, out, 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", *flagOut, err)
		}
		fmt.Printf("%s: %d ops -> %s\n", path, len(code), *flagOut)
		return nil, nil
	}
	return interp, nil
}

// printDisasm highlights mnemonics and group labels on a terminal.
func printDisasm(code []bytecode.Op) {
	text := bytecode.Disassemble(code)
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Print(text)
		return
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		addr, rest, ok := strings.Cut(line, ": ")
		if !ok {
			fmt.Print(line)
			continue
		}
		mnemonic, operands, _ := strings.Cut(rest, " ")
		color := "\x1b[36m"
		if strings.HasPrefix(mnemonic, "label") {
			color = "\x1b[1;33m"
		}
		mnemonic = strings.TrimSuffix(mnemonic, "\n")
		fmt.Printf("\x1b[2m%s:\x1b[0m %s%s\x1b[0m", addr, color, mnemonic)
		if operands != "" {
			fmt.Print(" " + operands)
		} else {
			fmt.Println()
		}
	}
}
