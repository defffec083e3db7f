package bytecode

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ailang/ai/pkg/types"
)

// Magic and Version head every encoded program.
const (
	Magic   = "AIC"
	Version = 1
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireProgram struct {
	Magic   string   `cbor:"1,keyasint"`
	Version int      `cbor:"2,keyasint"`
	Code    []wireOp `cbor:"3,keyasint"`
}

type wireOp struct {
	Code  Opcode     `cbor:"1,keyasint"`
	Value *wireValue `cbor:"2,keyasint,omitempty"`
	Slot  int        `cbor:"3,keyasint,omitempty"`
	Name  string     `cbor:"4,keyasint,omitempty"`
	Argc  int        `cbor:"5,keyasint,omitempty"`
	Addr  int        `cbor:"6,keyasint,omitempty"`
	Addrs []int      `cbor:"7,keyasint,omitempty"`
}

const (
	kindNumber = iota + 1
	kindString
	kindBoolean
)

type wireValue struct {
	Kind int     `cbor:"1,keyasint"`
	Num  float64 `cbor:"2,keyasint,omitempty"`
	Str  string  `cbor:"3,keyasint,omitempty"`
	Bool bool    `cbor:"4,keyasint,omitempty"`
}

// Marshal serializes compiled code to CBOR. Capabilities are not part of
// the encoding: the loader registers them again.
func Marshal(code []Op) ([]byte, error) {
	w := wireProgram{Magic: Magic, Version: Version, Code: make([]wireOp, len(code))}
	for i, op := range code {
		wo := wireOp{Code: op.Code, Slot: op.Slot, Name: op.Name, Argc: op.Argc, Addr: op.Addr, Addrs: op.Addrs}
		if op.Code == OpPush {
			v, err := encodeValue(op.Value)
			if err != nil {
				return nil, fmt.Errorf("bytecode: op %d: %w", i, err)
			}
			wo.Value = v
		}
		w.Code[i] = wo
	}
	return cborEncMode.Marshal(&w)
}

// Unmarshal deserializes code written by Marshal.
func Unmarshal(data []byte) ([]Op, error) {
	var w wireProgram
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if w.Magic != Magic {
		return nil, errors.New("bytecode: not a compiled Ai program")
	}
	if w.Version != Version {
		return nil, fmt.Errorf("bytecode: unsupported version %d", w.Version)
	}
	code := make([]Op, len(w.Code))
	for i, wo := range w.Code {
		if !wo.Code.Valid() {
			return nil, fmt.Errorf("bytecode: op %d: unknown opcode %s", i, wo.Code)
		}
		if wo.Slot < 0 {
			return nil, fmt.Errorf("bytecode: op %d: invalid slot %d", i, wo.Slot)
		}
		if wo.Argc < 0 {
			return nil, fmt.Errorf("bytecode: op %d: invalid argument count %d", i, wo.Argc)
		}
		op := Op{Code: wo.Code, Slot: wo.Slot, Name: wo.Name, Argc: wo.Argc, Addr: wo.Addr, Addrs: wo.Addrs}
		if wo.Code == OpPush {
			v, err := decodeValue(wo.Value)
			if err != nil {
				return nil, fmt.Errorf("bytecode: op %d: %w", i, err)
			}
			op.Value = v
		}
		code[i] = op
	}
	return code, nil
}

func encodeValue(v types.Value) (*wireValue, error) {
	switch x := v.(type) {
	case types.Number:
		return &wireValue{Kind: kindNumber, Num: float64(x)}, nil
	case types.String:
		return &wireValue{Kind: kindString, Str: string(x)}, nil
	case types.Boolean:
		return &wireValue{Kind: kindBoolean, Bool: bool(x)}, nil
	}
	return nil, fmt.Errorf("cannot encode value %v", v)
}

func decodeValue(w *wireValue) (types.Value, error) {
	if w == nil {
		return nil, errors.New("push without value")
	}
	switch w.Kind {
	case kindNumber:
		return types.Number(w.Num), nil
	case kindString:
		return types.String(w.Str), nil
	case kindBoolean:
		return types.Boolean(w.Bool), nil
	}
	return nil, fmt.Errorf("unknown value kind %d", w.Kind)
}
