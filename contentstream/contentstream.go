// Package contentstream parses page content streams into operator/operand
// pairs and tracks the graphics and text state they establish. Consumers
// register handlers for the operators they care about; the processor keeps
// the state machine honest either way.
package contentstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/recovery"
	"github.com/hyeonwoo/redactkit/scanner"
	"github.com/hyeonwoo/redactkit/security"
)

// Op is one content stream instruction: an operator preceded by its operands.
type Op struct {
	Operator string
	Operands []raw.Object
}

// Parse tokenizes a decoded content stream into operations. Unknown operators
// pass through untouched; malformed trailing operands are dropped.
func Parse(ctx context.Context, data []byte, limits security.Limits) ([]Op, error) {
	limits = limits.OrDefault()
	sc := scanner.New(bytes.NewReader(data), scanner.Config{
		MaxStringLength: limits.MaxStringLength,
		Recovery:        recovery.NewLenientStrategy(),
	})

	var ops []Op
	var operands []raw.Object
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Damaged tail; keep what parsed cleanly.
			break
		}
		switch {
		case tok.Type == scanner.TokenKeyword && tok.Str != "]" && tok.Str != ">>":
			ops = append(ops, Op{Operator: tok.Str, Operands: operands})
			operands = nil
		case tok.Type == scanner.TokenInlineImage:
			// Inline image payload; the BI/ID operands preceding it are
			// dropped along with the data.
			ops = append(ops, Op{Operator: "EI"})
			operands = nil
		default:
			obj, err := operandFromToken(sc, tok)
			if err != nil {
				return nil, fmt.Errorf("content operand: %w", err)
			}
			if obj != nil {
				operands = append(operands, obj)
			}
		}
	}
	return ops, nil
}

func operandFromToken(sc scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.Null(), nil
	case scanner.TokenRef:
		// References are illegal in content; treat as two dropped numbers.
		return nil, nil
	case scanner.TokenArray:
		return operandArray(sc)
	case scanner.TokenDict:
		return operandDict(sc)
	case scanner.TokenKeyword:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok.Type)
	}
}

func operandArray(sc scanner.Scanner) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := sc.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated array: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		item, err := operandFromToken(sc, tok)
		if err != nil {
			return nil, err
		}
		if item != nil {
			arr.Items = append(arr.Items, item)
		}
	}
}

func operandDict(sc scanner.Scanner) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := sc.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dict: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			continue
		}
		valTok, err := sc.Next()
		if err != nil {
			return nil, err
		}
		val, err := operandFromToken(sc, valTok)
		if err != nil {
			return nil, err
		}
		if val != nil {
			dict.Set(raw.NameLiteral(tok.Str), val)
		}
	}
}

// Float extracts a numeric operand.
func Float(o raw.Object) (float64, bool) {
	n, ok := o.(raw.NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// Floats extracts the last n operands as numbers.
func Floats(operands []raw.Object, n int) ([]float64, bool) {
	if len(operands) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, ok := Float(operands[len(operands)-n+i])
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// NameOperand extracts a name operand's value.
func NameOperand(o raw.Object) (string, bool) {
	n, ok := o.(raw.NameObj)
	if !ok {
		return "", false
	}
	return n.Value(), true
}

// StringOperand extracts a string operand's bytes.
func StringOperand(o raw.Object) ([]byte, bool) {
	s, ok := o.(raw.StringObj)
	if !ok {
		return nil, false
	}
	return s.Value(), true
}
