package binary

import (
	"fmt"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/ir"
)

func decodeElementSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Elements = make([]ElementDecl, count)
	for i := range m.Elements {
		flags, err := r.u32()
		if err != nil {
			return err
		}
		d := ElementDecl{Type: api.ValueTypeFuncref}
		switch flags {
		case 0: // active, table 0, expr offset, vec(funcidx)
			d.Mode = ElemModeActive
			if d.Offset, err = decodeConstExpr(r); err != nil {
				return err
			}
			if d.Items, err = decodeElemFuncIndices(r); err != nil {
				return err
			}
		case 1: // passive, elemkind, vec(funcidx)
			d.Mode = ElemModePassive
			if err = decodeElemKind(r); err != nil {
				return err
			}
			if d.Items, err = decodeElemFuncIndices(r); err != nil {
				return err
			}
		case 2: // active, table x, expr offset, elemkind, vec(funcidx)
			d.Mode = ElemModeActive
			if d.TableIndex, err = r.u32(); err != nil {
				return err
			}
			if d.Offset, err = decodeConstExpr(r); err != nil {
				return err
			}
			if err = decodeElemKind(r); err != nil {
				return err
			}
			if d.Items, err = decodeElemFuncIndices(r); err != nil {
				return err
			}
		case 3: // declared, elemkind, vec(funcidx)
			d.Mode = ElemModeDeclared
			if err = decodeElemKind(r); err != nil {
				return err
			}
			if d.Items, err = decodeElemFuncIndices(r); err != nil {
				return err
			}
		case 4: // active, table 0, expr offset, vec(expr)
			d.Mode = ElemModeActive
			if d.Offset, err = decodeConstExpr(r); err != nil {
				return err
			}
			if d.Items, err = decodeElemExprs(r); err != nil {
				return err
			}
		case 5: // passive, reftype, vec(expr)
			d.Mode = ElemModePassive
			if d.Type, err = decodeValueType(r); err != nil {
				return err
			}
			if d.Items, err = decodeElemExprs(r); err != nil {
				return err
			}
		case 6: // active, table x, expr offset, reftype, vec(expr)
			d.Mode = ElemModeActive
			if d.TableIndex, err = r.u32(); err != nil {
				return err
			}
			if d.Offset, err = decodeConstExpr(r); err != nil {
				return err
			}
			if d.Type, err = decodeValueType(r); err != nil {
				return err
			}
			if d.Items, err = decodeElemExprs(r); err != nil {
				return err
			}
		case 7: // declared, reftype, vec(expr)
			d.Mode = ElemModeDeclared
			if d.Type, err = decodeValueType(r); err != nil {
				return err
			}
			if d.Items, err = decodeElemExprs(r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: invalid element segment flags %d", ErrMalformed, flags)
		}
		m.Elements[i] = d
	}
	return nil
}

// decodeElemKind consumes the single reserved 0x00 byte ("elemkind funcref").
func decodeElemKind(r *reader) error {
	b, err := r.byte()
	if err != nil {
		return err
	}
	if b != 0x00 {
		return fmt.Errorf("%w: invalid elemkind %#x", ErrMalformed, b)
	}
	return nil
}

// decodeElemFuncIndices decodes vec(funcidx), synthesizing a one-operator
// `ref.func x` const expression per item so every element item is uniformly
// an operator stream regardless of which binary encoding produced it.
func decodeElemFuncIndices(r *reader) ([][]ir.Operator, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([][]ir.Operator, n)
	for i := range out {
		idx, err := r.u32()
		if err != nil {
			return nil, err
		}
		out[i] = []ir.Operator{{Op: ir.OpRefFunc, Index: idx}, {Op: ir.OpEnd}}
	}
	return out, nil
}

func decodeElemExprs(r *reader) ([][]ir.Operator, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([][]ir.Operator, n)
	for i := range out {
		expr, err := decodeConstExpr(r)
		if err != nil {
			return nil, err
		}
		out[i] = expr
	}
	return out, nil
}

func decodeCodeSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Functions = make([]FunctionBody, count)
	for i := range m.Functions {
		size, err := r.u32()
		if err != nil {
			return err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return err
		}
		br := &reader{b: body}
		localCount, err := br.u32()
		if err != nil {
			return err
		}
		var locals []api.ValueType
		var total uint64
		for j := uint32(0); j < localCount; j++ {
			n, err := br.u32()
			if err != nil {
				return err
			}
			total += uint64(n)
			if total > 1<<20 {
				return ErrInvalidLocalCount
			}
			vt, err := decodeValueType(br)
			if err != nil {
				return err
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}
		ops, err := decodeExpr(br)
		if err != nil {
			return err
		}
		if !br.eof() {
			return fmt.Errorf("%w: trailing bytes in function body %d", ErrMalformed, i)
		}
		m.Functions[i] = FunctionBody{Locals: locals, Ops: ops}
	}
	return nil
}
