package interpreter

import (
	"fmt"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

// Verify checks every external reference of the program against the
// registered capabilities and the group table. Each offending name is
// reported once, at the first instruction that mentions it. The result is
// nil or a types.Errors.
func (in *Interpreter) Verify() error {
	var errs types.Errors
	seen := make(map[string]bool)
	report := func(key string, e *types.Error) {
		if seen[key] {
			return
		}
		seen[key] = true
		errs = append(errs, e)
	}

	code := in.prog.Code
	for addr, op := range code {
		switch op.Code {
		case bytecode.OpGet:
			if _, ok := in.prog.Property(op.Name); !ok {
				report(op.Name, types.NameError(types.ErrUnregisteredProperty, addr, op.Name))
			}
		case bytecode.OpSet:
			prop, ok := in.prog.Property(op.Name)
			switch {
			case !ok:
				report(op.Name, types.NameError(types.ErrUnregisteredProperty, addr, op.Name))
			case !prop.Settable():
				report(op.Name, types.NameError(types.ErrUnsettableProperty, addr, op.Name))
			}
		case bytecode.OpCall:
			if _, ok := in.prog.Resolve(op.Name); !ok {
				report(op.Name, types.NameError(types.ErrUnregisteredCallable, addr, op.Name))
			}
		case bytecode.OpCallParallel, bytecode.OpCallRace:
			entry, ok := in.prog.Group(op.Name)
			if ok {
				_, _, ok = in.prog.ForkAt(entry)
			}
			if !ok {
				report(op.Name, types.NameError(types.ErrInvalidCall, addr, op.Name))
			}
		case bytecode.OpJump, bytecode.OpJumpIf, bytecode.OpJumpUnless:
			if op.Addr < 0 || op.Addr > len(code) {
				report(fmt.Sprintf("@%d", addr), types.Errorf(types.ErrIndexOutOfBounds, addr, "jump target %d", op.Addr))
			}
		case bytecode.OpFork:
			for _, a := range op.Addrs {
				if a < 0 || a >= len(code) {
					report(fmt.Sprintf("@%d", addr), types.Errorf(types.ErrIndexOutOfBounds, addr, "fork target %d", a))
				}
			}
		}
	}

	if len(errs) > 0 {
		log.Errorf("verification failed: %s", errs)
		return errs
	}
	log.Debugf("verified %d op(s)", len(code))
	return nil
}
