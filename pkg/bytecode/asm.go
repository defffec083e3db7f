package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ailang/ai/pkg/types"
)

// Disassemble converts a program back to text, one instruction per line
// prefixed with its address. The output is accepted by Assemble.
func Disassemble(code []Op) string {
	var sb strings.Builder
	for addr, op := range code {
		fmt.Fprintf(&sb, "%04d: %s\n", addr, op)
	}
	return sb.String()
}

// Assembler converts text assembly to ops
type Assembler struct {
	code   []Op
	labels map[string]int
	fixups []fixup
}

type fixup struct {
	pos   int
	index int // -1 for Addr, otherwise Addrs[index]
	label string
	line  int
}

// NewAssembler creates a new assembler
func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[string]int)}
}

// Assemble is a convenience wrapper around a fresh Assembler.
func Assemble(source string) ([]Op, error) {
	return NewAssembler().Assemble(source)
}

// Assemble converts assembly text to ops. Lines may carry a "NNNN:" address
// prefix (ignored), "; comments", and "name:" label definitions that jump
// and fork operands can refer to.
func (a *Assembler) Assemble(source string) ([]Op, error) {
	a.code = make([]Op, 0, 64)
	a.labels = make(map[string]int)
	a.fixups = nil

	for lineNum, line := range strings.Split(source, "\n") {
		tokens, err := tokenize(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum+1, err)
		}
		// Address prefix
		if len(tokens) > 1 && isAddress(tokens[0]) {
			tokens = tokens[1:]
		}
		if len(tokens) == 0 {
			continue
		}
		// Label definition
		if len(tokens) == 1 && strings.HasSuffix(tokens[0], ":") {
			a.labels[strings.TrimSuffix(tokens[0], ":")] = len(a.code)
			continue
		}
		if err := a.assembleTokens(tokens, lineNum+1); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum+1, err)
		}
	}

	// Apply fixups
	for _, f := range a.fixups {
		addr, ok := a.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("line %d: undefined label: %s", f.line, f.label)
		}
		if f.index < 0 {
			a.code[f.pos].Addr = addr
		} else {
			a.code[f.pos].Addrs[f.index] = addr
		}
	}
	return a.code, nil
}

func isAddress(tok string) bool {
	if !strings.HasSuffix(tok, ":") || len(tok) < 2 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSuffix(tok, ":"))
	return err == nil
}

// tokenize splits on blanks, keeps quoted strings whole and drops a
// trailing ';' comment.
func tokenize(line string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	var quote rune
	escaped := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range line {
		switch {
		case quote != 0:
			current.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == quote {
				flush()
				quote = 0
			}
		case r == '"':
			flush()
			current.WriteRune(r)
			quote = r
		case r == ';':
			flush()
			return tokens, nil
		case r == ' ' || r == '\t' || r == ',' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string")
	}
	flush()
	return tokens, nil
}

func (a *Assembler) assembleTokens(tokens []string, lineNum int) error {
	code, ok := opcodesByName[strings.ToLower(tokens[0])]
	if !ok {
		return fmt.Errorf("unknown mnemonic: %s", tokens[0])
	}
	args := tokens[1:]
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s requires %d operand(s), got %d", code, n, len(args))
		}
		return nil
	}

	op := Op{Code: code}
	switch code {
	case OpPush:
		if err := need(1); err != nil {
			return err
		}
		v, err := parseValue(args[0])
		if err != nil {
			return err
		}
		op.Value = v

	case OpLoad, OpStore:
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid slot: %s", args[0])
		}
		op.Slot = n

	case OpGet, OpSet, OpLabel:
		if err := need(1); err != nil {
			return err
		}
		op.Name = args[0]

	case OpCall, OpCallParallel, OpCallRace:
		if len(args) != 1 && len(args) != 2 {
			return fmt.Errorf("%s requires a name and an optional argument count", code)
		}
		op.Name = args[0]
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid argument count: %s", args[1])
			}
			op.Argc = n
		}

	case OpJump, OpJumpIf, OpJumpUnless:
		if err := need(1); err != nil {
			return err
		}
		if n, err := strconv.Atoi(args[0]); err == nil {
			op.Addr = n
		} else {
			a.fixups = append(a.fixups, fixup{pos: len(a.code), index: -1, label: args[0], line: lineNum})
		}

	case OpFork:
		op.Addrs = make([]int, len(args))
		for i, target := range args {
			if n, err := strconv.Atoi(target); err == nil {
				op.Addrs[i] = n
			} else {
				a.fixups = append(a.fixups, fixup{pos: len(a.code), index: i, label: target, line: lineNum})
			}
		}

	default:
		if err := need(0); err != nil {
			return err
		}
	}

	a.code = append(a.code, op)
	return nil
}

func parseValue(tok string) (types.Value, error) {
	switch tok {
	case "true":
		return types.Boolean(true), nil
	case "false":
		return types.Boolean(false), nil
	}
	if strings.HasPrefix(tok, "\"") {
		s, err := strconv.Unquote(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid string: %s", tok)
		}
		return types.String(s), nil
	}
	n, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", tok)
	}
	return types.Number(n), nil
}
