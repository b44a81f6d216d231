package venue

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/vaultgate/core"
)

// Shape tells which representation an event's arguments were decoded into
type Shape int

const (
	// ShapePositional holds arguments in declaration order
	ShapePositional Shape = iota + 1
	// ShapeNamed holds arguments by field name
	ShapeNamed
	// ShapeNumericKeyed holds positional arguments under digit-only keys
	ShapeNumericKeyed
)

// EventArgs is the decoded argument set of one event record. Values is used by
// ShapePositional, Fields by the two keyed shapes.
type EventArgs struct {
	Shape  Shape
	Values []any
	Fields map[string]any
}

// Positional builds arguments in declaration order
func Positional(values ...any) EventArgs {
	return EventArgs{Shape: ShapePositional, Values: values}
}

// Named builds arguments keyed by field name
func Named(fields map[string]any) EventArgs {
	return EventArgs{Shape: ShapeNamed, Fields: fields}
}

// NumericKeyed builds positional arguments keyed by their index
func NumericKeyed(fields map[string]any) EventArgs {
	return EventArgs{Shape: ShapeNumericKeyed, Fields: fields}
}

var errSchemaMismatch = errors.New("record does not match schema")

// Schema parses raw event records of one expected event
type Schema interface {
	Name() string
	Parse(log *types.Log) (EventArgs, error)
}

// ABISchema matches records against one event of a contract ABI
type ABISchema struct {
	event abi.Event
	args  abi.Arguments
	named bool
}

// NewABISchema returns the schema of event in contract
func NewABISchema(contract *abi.ABI, event string) (*ABISchema, error) {
	ev, ok := contract.Events[event]
	if !ok {
		return nil, fmt.Errorf("event %s not in contract ABI", event)
	}

	// Unnamed inputs are keyed by position so they never collide in maps.
	// go-ethereum already renames them to argN when parsing the ABI.
	args := make(abi.Arguments, len(ev.Inputs))
	named := false
	for i, in := range ev.Inputs {
		args[i] = in
		if in.Name == "" || in.Name == "arg"+strconv.Itoa(i) {
			args[i].Name = strconv.Itoa(i)
		} else {
			named = true
		}
	}

	return &ABISchema{event: ev, args: args, named: named}, nil
}

func mustSchema(contract *abi.ABI, event string) *ABISchema {
	s, err := NewABISchema(contract, event)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the event name the schema decodes
func (s *ABISchema) Name() string {
	return s.event.Name
}

// Parse decodes log if its signature and layout match the event
func (s *ABISchema) Parse(log *types.Log) (EventArgs, error) {
	if log == nil || len(log.Topics) == 0 || log.Topics[0] != s.event.ID {
		return EventArgs{}, errSchemaMismatch
	}

	var indexed abi.Arguments
	for _, a := range s.args {
		if a.Indexed {
			indexed = append(indexed, a)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return EventArgs{}, errSchemaMismatch
	}

	fields := make(map[string]any, len(s.args))
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return EventArgs{}, fmt.Errorf("%w: %v", errSchemaMismatch, err)
	}

	nonIndexed := s.args.NonIndexed()
	values, err := nonIndexed.Unpack(log.Data)
	if err != nil {
		return EventArgs{}, fmt.Errorf("%w: %v", errSchemaMismatch, err)
	}
	for i, a := range nonIndexed {
		fields[a.Name] = values[i]
	}

	if s.named {
		return Named(fields), nil
	}

	ordered := make([]any, len(s.args))
	for i, a := range s.args {
		ordered[i] = fields[a.Name]
	}
	return Positional(ordered...), nil
}

// DecodeID finds the first record in logs that parses under schema and extracts
// field from it as an unsigned integer. Record order is preserved.
func DecodeID(logs []*types.Log, schema Schema, field string) (uint64, error) {
	for _, l := range logs {
		args, err := schema.Parse(l)
		if err != nil {
			continue
		}
		return ExtractID(args, field)
	}

	return 0, fmt.Errorf("%w: %s", core.ErrEventNotFound, schema.Name())
}

// ExtractID pulls an identifier out of decoded event arguments. It prefers the
// first positional value, then field, then the lowest numeric key.
func ExtractID(args EventArgs, field string) (uint64, error) {
	switch args.Shape {
	case ShapePositional:
		if len(args.Values) > 0 {
			return toUint64(args.Values[0])
		}
	case ShapeNamed:
		if v, ok := args.Fields[field]; ok {
			return toUint64(v)
		}
		if v, ok := lowestNumericKey(args.Fields); ok {
			return toUint64(v)
		}
	case ShapeNumericKeyed:
		if v, ok := lowestNumericKey(args.Fields); ok {
			return toUint64(v)
		}
	}

	return 0, fmt.Errorf("%w: %s missing", core.ErrFieldNotNumeric, field)
}

func lowestNumericKey(fields map[string]any) (any, bool) {
	best := -1
	var value any
	for k, v := range fields {
		if k == "" || strings.TrimLeft(k, "0123456789") != "" {
			continue
		}
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		if best < 0 || n < best {
			best, value = n, v
		}
	}
	return value, best >= 0
}

func toUint64(v any) (uint64, error) {
	notNumeric := func() (uint64, error) {
		return 0, fmt.Errorf("%w: %v (%T)", core.ErrFieldNotNumeric, v, v)
	}

	switch n := v.(type) {
	case *big.Int:
		if n == nil || n.Sign() < 0 || !n.IsUint64() {
			return notNumeric()
		}
		return n.Uint64(), nil
	case big.Int:
		return toUint64(&n)
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	case int64:
		if n < 0 {
			return notNumeric()
		}
		return uint64(n), nil
	case int32:
		return toUint64(int64(n))
	case int16:
		return toUint64(int64(n))
	case int8:
		return toUint64(int64(n))
	case int:
		return toUint64(int64(n))
	case float64:
		if n < 0 || n != math.Trunc(n) || n >= math.MaxUint64 {
			return notNumeric()
		}
		return uint64(n), nil
	case string:
		s, base := strings.TrimSpace(n), 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, base = s[2:], 16
		}
		parsed, ok := new(big.Int).SetString(s, base)
		if !ok {
			return notNumeric()
		}
		return toUint64(parsed)
	}

	return notNumeric()
}
