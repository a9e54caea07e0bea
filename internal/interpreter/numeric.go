package interpreter

import (
	"math"
	"math/bits"

	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/trap"
)

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// stepNumeric dispatches the 136 numeric/comparison/conversion operators.
func (e *engine) stepNumeric(op ir.NumericOp) {
	switch {
	case op >= ir.NumEqzI32 && op <= ir.NumGeU32:
		e.stepCompareI32(op)
	case op >= ir.NumEqzI64 && op <= ir.NumGeU64:
		e.stepCompareI64(op)
	case op >= ir.NumEqF32 && op <= ir.NumGeF32:
		e.stepCompareF32(op)
	case op >= ir.NumEqF64 && op <= ir.NumGeF64:
		e.stepCompareF64(op)
	case op >= ir.NumClzI32 && op <= ir.NumRotrI32:
		e.stepArithI32(op)
	case op >= ir.NumClzI64 && op <= ir.NumRotrI64:
		e.stepArithI64(op)
	case op >= ir.NumAbsF32 && op <= ir.NumCopysignF32:
		e.stepArithF32(op)
	case op >= ir.NumAbsF64 && op <= ir.NumCopysignF64:
		e.stepArithF64(op)
	default:
		e.stepConvert(op)
	}
}

func (e *engine) stepCompareI32(op ir.NumericOp) {
	if op == ir.NumEqzI32 {
		a := e.vs.pop32()
		e.vs.push32(b2u32(a == 0))
		return
	}
	b, a := int32(e.vs.pop32()), int32(e.vs.pop32())
	ub, ua := uint32(b), uint32(a)
	var r bool
	switch op {
	case ir.NumEqI32:
		r = a == b
	case ir.NumNeI32:
		r = a != b
	case ir.NumLtS32:
		r = a < b
	case ir.NumLtU32:
		r = ua < ub
	case ir.NumGtS32:
		r = a > b
	case ir.NumGtU32:
		r = ua > ub
	case ir.NumLeS32:
		r = a <= b
	case ir.NumLeU32:
		r = ua <= ub
	case ir.NumGeS32:
		r = a >= b
	case ir.NumGeU32:
		r = ua >= ub
	}
	e.vs.push32(b2u32(r))
}

func (e *engine) stepCompareI64(op ir.NumericOp) {
	if op == ir.NumEqzI64 {
		a := e.vs.pop64()
		e.vs.push32(b2u32(a == 0))
		return
	}
	b, a := int64(e.vs.pop64()), int64(e.vs.pop64())
	ub, ua := uint64(b), uint64(a)
	var r bool
	switch op {
	case ir.NumEqI64:
		r = a == b
	case ir.NumNeI64:
		r = a != b
	case ir.NumLtS64:
		r = a < b
	case ir.NumLtU64:
		r = ua < ub
	case ir.NumGtS64:
		r = a > b
	case ir.NumGtU64:
		r = ua > ub
	case ir.NumLeS64:
		r = a <= b
	case ir.NumLeU64:
		r = ua <= ub
	case ir.NumGeS64:
		r = a >= b
	case ir.NumGeU64:
		r = ua >= ub
	}
	e.vs.push32(b2u32(r))
}

func (e *engine) stepCompareF32(op ir.NumericOp) {
	b := math.Float32frombits(e.vs.pop32())
	a := math.Float32frombits(e.vs.pop32())
	var r bool
	switch op {
	case ir.NumEqF32:
		r = a == b
	case ir.NumNeF32:
		r = a != b
	case ir.NumLtF32:
		r = a < b
	case ir.NumGtF32:
		r = a > b
	case ir.NumLeF32:
		r = a <= b
	case ir.NumGeF32:
		r = a >= b
	}
	e.vs.push32(b2u32(r))
}

func (e *engine) stepCompareF64(op ir.NumericOp) {
	b := math.Float64frombits(e.vs.pop64())
	a := math.Float64frombits(e.vs.pop64())
	var r bool
	switch op {
	case ir.NumEqF64:
		r = a == b
	case ir.NumNeF64:
		r = a != b
	case ir.NumLtF64:
		r = a < b
	case ir.NumGtF64:
		r = a > b
	case ir.NumLeF64:
		r = a <= b
	case ir.NumGeF64:
		r = a >= b
	}
	e.vs.push32(b2u32(r))
}

func (e *engine) stepArithI32(op ir.NumericOp) {
	if op == ir.NumClzI32 || op == ir.NumCtzI32 || op == ir.NumPopcntI32 {
		a := e.vs.pop32()
		switch op {
		case ir.NumClzI32:
			e.vs.push32(uint32(bits.LeadingZeros32(a)))
		case ir.NumCtzI32:
			e.vs.push32(uint32(bits.TrailingZeros32(a)))
		case ir.NumPopcntI32:
			e.vs.push32(uint32(bits.OnesCount32(a)))
		}
		return
	}
	b, a := e.vs.pop32(), e.vs.pop32()
	sb, sa := int32(b), int32(a)
	switch op {
	case ir.NumAddI32:
		e.vs.push32(a + b)
	case ir.NumSubI32:
		e.vs.push32(a - b)
	case ir.NumMulI32:
		e.vs.push32(a * b)
	case ir.NumDivS32:
		if b == 0 {
			panic(trap.New(trap.IntegerDivideByZero))
		}
		if sa == math.MinInt32 && sb == -1 {
			panic(trap.New(trap.IntegerOverflow))
		}
		e.vs.push32(uint32(sa / sb))
	case ir.NumDivU32:
		if b == 0 {
			panic(trap.New(trap.IntegerDivideByZero))
		}
		e.vs.push32(a / b)
	case ir.NumRemS32:
		if b == 0 {
			panic(trap.New(trap.IntegerDivideByZero))
		}
		if sa == math.MinInt32 && sb == -1 {
			e.vs.push32(0)
		} else {
			e.vs.push32(uint32(sa % sb))
		}
	case ir.NumRemU32:
		if b == 0 {
			panic(trap.New(trap.IntegerDivideByZero))
		}
		e.vs.push32(a % b)
	case ir.NumAndI32:
		e.vs.push32(a & b)
	case ir.NumOrI32:
		e.vs.push32(a | b)
	case ir.NumXorI32:
		e.vs.push32(a ^ b)
	case ir.NumShlI32:
		e.vs.push32(a << (b & 31))
	case ir.NumShrS32:
		e.vs.push32(uint32(sa >> (b & 31)))
	case ir.NumShrU32:
		e.vs.push32(a >> (b & 31))
	case ir.NumRotlI32:
		e.vs.push32(bits.RotateLeft32(a, int(b&31)))
	case ir.NumRotrI32:
		e.vs.push32(bits.RotateLeft32(a, -int(b&31)))
	}
}

func (e *engine) stepArithI64(op ir.NumericOp) {
	if op == ir.NumClzI64 || op == ir.NumCtzI64 || op == ir.NumPopcntI64 {
		a := e.vs.pop64()
		switch op {
		case ir.NumClzI64:
			e.vs.push64(uint64(bits.LeadingZeros64(a)))
		case ir.NumCtzI64:
			e.vs.push64(uint64(bits.TrailingZeros64(a)))
		case ir.NumPopcntI64:
			e.vs.push64(uint64(bits.OnesCount64(a)))
		}
		return
	}
	b, a := e.vs.pop64(), e.vs.pop64()
	sb, sa := int64(b), int64(a)
	switch op {
	case ir.NumAddI64:
		e.vs.push64(a + b)
	case ir.NumSubI64:
		e.vs.push64(a - b)
	case ir.NumMulI64:
		e.vs.push64(a * b)
	case ir.NumDivS64:
		if b == 0 {
			panic(trap.New(trap.IntegerDivideByZero))
		}
		if sa == math.MinInt64 && sb == -1 {
			panic(trap.New(trap.IntegerOverflow))
		}
		e.vs.push64(uint64(sa / sb))
	case ir.NumDivU64:
		if b == 0 {
			panic(trap.New(trap.IntegerDivideByZero))
		}
		e.vs.push64(a / b)
	case ir.NumRemS64:
		if b == 0 {
			panic(trap.New(trap.IntegerDivideByZero))
		}
		if sa == math.MinInt64 && sb == -1 {
			e.vs.push64(0)
		} else {
			e.vs.push64(uint64(sa % sb))
		}
	case ir.NumRemU64:
		if b == 0 {
			panic(trap.New(trap.IntegerDivideByZero))
		}
		e.vs.push64(a % b)
	case ir.NumAndI64:
		e.vs.push64(a & b)
	case ir.NumOrI64:
		e.vs.push64(a | b)
	case ir.NumXorI64:
		e.vs.push64(a ^ b)
	case ir.NumShlI64:
		e.vs.push64(a << (b & 63))
	case ir.NumShrS64:
		e.vs.push64(uint64(sa >> (b & 63)))
	case ir.NumShrU64:
		e.vs.push64(a >> (b & 63))
	case ir.NumRotlI64:
		e.vs.push64(bits.RotateLeft64(a, int(b&63)))
	case ir.NumRotrI64:
		e.vs.push64(bits.RotateLeft64(a, -int(b&63)))
	}
}

func (e *engine) stepArithF32(op ir.NumericOp) {
	if op == ir.NumAbsF32 || op == ir.NumNegF32 || op == ir.NumCeilF32 || op == ir.NumFloorF32 ||
		op == ir.NumTruncF32 || op == ir.NumNearestF32 || op == ir.NumSqrtF32 {
		a := math.Float32frombits(e.vs.pop32())
		var r float32
		switch op {
		case ir.NumAbsF32:
			r = float32(math.Abs(float64(a)))
		case ir.NumNegF32:
			r = -a
		case ir.NumCeilF32:
			r = float32(math.Ceil(float64(a)))
		case ir.NumFloorF32:
			r = float32(math.Floor(float64(a)))
		case ir.NumTruncF32:
			r = float32(math.Trunc(float64(a)))
		case ir.NumNearestF32:
			r = float32(math.RoundToEven(float64(a)))
		case ir.NumSqrtF32:
			r = float32(math.Sqrt(float64(a)))
		}
		e.vs.push32(math.Float32bits(r))
		return
	}
	b := math.Float32frombits(e.vs.pop32())
	a := math.Float32frombits(e.vs.pop32())
	var r float32
	switch op {
	case ir.NumAddF32:
		r = a + b
	case ir.NumSubF32:
		r = a - b
	case ir.NumMulF32:
		r = a * b
	case ir.NumDivF32:
		r = a / b
	case ir.NumMinF32:
		r = wasmMinF32(a, b)
	case ir.NumMaxF32:
		r = wasmMaxF32(a, b)
	case ir.NumCopysignF32:
		r = float32(math.Copysign(float64(a), float64(b)))
	}
	e.vs.push32(math.Float32bits(r))
}

func (e *engine) stepArithF64(op ir.NumericOp) {
	if op == ir.NumAbsF64 || op == ir.NumNegF64 || op == ir.NumCeilF64 || op == ir.NumFloorF64 ||
		op == ir.NumTruncF64 || op == ir.NumNearestF64 || op == ir.NumSqrtF64 {
		a := math.Float64frombits(e.vs.pop64())
		var r float64
		switch op {
		case ir.NumAbsF64:
			r = math.Abs(a)
		case ir.NumNegF64:
			r = -a
		case ir.NumCeilF64:
			r = math.Ceil(a)
		case ir.NumFloorF64:
			r = math.Floor(a)
		case ir.NumTruncF64:
			r = math.Trunc(a)
		case ir.NumNearestF64:
			r = math.RoundToEven(a)
		case ir.NumSqrtF64:
			r = math.Sqrt(a)
		}
		e.vs.push64(math.Float64bits(r))
		return
	}
	b := math.Float64frombits(e.vs.pop64())
	a := math.Float64frombits(e.vs.pop64())
	var r float64
	switch op {
	case ir.NumAddF64:
		r = a + b
	case ir.NumSubF64:
		r = a - b
	case ir.NumMulF64:
		r = a * b
	case ir.NumDivF64:
		r = a / b
	case ir.NumMinF64:
		r = wasmMinF64(a, b)
	case ir.NumMaxF64:
		r = wasmMaxF64(a, b)
	case ir.NumCopysignF64:
		r = math.Copysign(a, b)
	}
	e.vs.push64(math.Float64bits(r))
}

// wasmMinF32/wasmMaxF32 implement wasm's NaN-propagating, signed-zero-aware
// min/max (float min/max: NaN-propagating, -0 < +0).
func wasmMinF32(a, b float32) float32 {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN())
	}
	if a == 0 && b == 0 {
		if math.Signbit(float64(a)) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func wasmMaxF32(a, b float32) float32 {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN())
	}
	if a == 0 && b == 0 {
		if math.Signbit(float64(a)) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}

func wasmMinF64(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func wasmMaxF64(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}

// stepConvert executes the conversion operators. The non-saturating trunc
// conversions go through the truncF64To* helpers, which trap on NaN
// (InvalidConversionToInteger) or an out-of-range source (IntegerOverflow).
func (e *engine) stepConvert(op ir.NumericOp) {
	switch op {
	case ir.NumWrapI64ToI32:
		e.vs.push32(uint32(e.vs.pop64()))

	case ir.NumTruncF32ToI32S:
		e.vs.push32(uint32(truncF64ToI32S(float64(math.Float32frombits(e.vs.pop32())))))
	case ir.NumTruncF32ToI32U:
		e.vs.push32(truncF64ToU32(float64(math.Float32frombits(e.vs.pop32()))))
	case ir.NumTruncF64ToI32S:
		e.vs.push32(uint32(truncF64ToI32S(math.Float64frombits(e.vs.pop64()))))
	case ir.NumTruncF64ToI32U:
		e.vs.push32(truncF64ToU32(math.Float64frombits(e.vs.pop64())))

	case ir.NumExtendI32ToI64S:
		e.vs.push64(uint64(int64(int32(e.vs.pop32()))))
	case ir.NumExtendI32ToI64U:
		e.vs.push64(uint64(e.vs.pop32()))

	case ir.NumTruncF32ToI64S:
		e.vs.push64(uint64(truncF64ToI64S(float64(math.Float32frombits(e.vs.pop32())))))
	case ir.NumTruncF32ToI64U:
		e.vs.push64(truncF64ToU64(float64(math.Float32frombits(e.vs.pop32()))))
	case ir.NumTruncF64ToI64S:
		e.vs.push64(uint64(truncF64ToI64S(math.Float64frombits(e.vs.pop64()))))
	case ir.NumTruncF64ToI64U:
		e.vs.push64(truncF64ToU64(math.Float64frombits(e.vs.pop64())))

	case ir.NumConvertI32ToF32S:
		e.vs.push32(math.Float32bits(float32(int32(e.vs.pop32()))))
	case ir.NumConvertI32ToF32U:
		e.vs.push32(math.Float32bits(float32(e.vs.pop32())))
	case ir.NumConvertI64ToF32S:
		e.vs.push32(math.Float32bits(float32(int64(e.vs.pop64()))))
	case ir.NumConvertI64ToF32U:
		e.vs.push32(math.Float32bits(float32(e.vs.pop64())))
	case ir.NumDemoteF64ToF32:
		e.vs.push32(math.Float32bits(float32(math.Float64frombits(e.vs.pop64()))))

	case ir.NumConvertI32ToF64S:
		e.vs.push64(math.Float64bits(float64(int32(e.vs.pop32()))))
	case ir.NumConvertI32ToF64U:
		e.vs.push64(math.Float64bits(float64(e.vs.pop32())))
	case ir.NumConvertI64ToF64S:
		e.vs.push64(math.Float64bits(float64(int64(e.vs.pop64()))))
	case ir.NumConvertI64ToF64U:
		e.vs.push64(math.Float64bits(float64(e.vs.pop64())))
	case ir.NumPromoteF32ToF64:
		e.vs.push64(math.Float64bits(float64(math.Float32frombits(e.vs.pop32()))))

	case ir.NumReinterpretF32ToI32:
		e.vs.push32(e.vs.pop32())
	case ir.NumReinterpretI32ToF32:
		e.vs.push32(e.vs.pop32())
	case ir.NumReinterpretF64ToI64:
		e.vs.push64(e.vs.pop64())
	case ir.NumReinterpretI64ToF64:
		e.vs.push64(e.vs.pop64())

	case ir.NumExtend8S32:
		e.vs.push32(uint32(int32(int8(e.vs.pop32()))))
	case ir.NumExtend16S32:
		e.vs.push32(uint32(int32(int16(e.vs.pop32()))))
	case ir.NumExtend8S64:
		e.vs.push64(uint64(int64(int8(e.vs.pop64()))))
	case ir.NumExtend16S64:
		e.vs.push64(uint64(int64(int16(e.vs.pop64()))))
	case ir.NumExtend32S64:
		e.vs.push64(uint64(int64(int32(e.vs.pop64()))))

	case ir.NumTruncSatF32ToI32S:
		e.vs.push32(uint32(satF64ToI32S(float64(math.Float32frombits(e.vs.pop32())))))
	case ir.NumTruncSatF32ToI32U:
		e.vs.push32(satF64ToU32(float64(math.Float32frombits(e.vs.pop32()))))
	case ir.NumTruncSatF64ToI32S:
		e.vs.push32(uint32(satF64ToI32S(math.Float64frombits(e.vs.pop64()))))
	case ir.NumTruncSatF64ToI32U:
		e.vs.push32(satF64ToU32(math.Float64frombits(e.vs.pop64())))
	case ir.NumTruncSatF32ToI64S:
		e.vs.push64(uint64(satF64ToI64S(float64(math.Float32frombits(e.vs.pop32())))))
	case ir.NumTruncSatF32ToI64U:
		e.vs.push64(satF64ToU64(float64(math.Float32frombits(e.vs.pop32()))))
	case ir.NumTruncSatF64ToI64S:
		e.vs.push64(uint64(satF64ToI64S(math.Float64frombits(e.vs.pop64()))))
	case ir.NumTruncSatF64ToI64U:
		e.vs.push64(satF64ToU64(math.Float64frombits(e.vs.pop64())))
	}
}

func truncF64ToI32S(f float64) int32 {
	if math.IsNaN(f) {
		panic(trap.New(trap.InvalidConversionToInteger))
	}
	if f <= -2147483649.0 || f >= 2147483648.0 {
		panic(trap.New(trap.IntegerOverflow))
	}
	return int32(math.Trunc(f))
}

func truncF64ToU32(f float64) uint32 {
	if math.IsNaN(f) {
		panic(trap.New(trap.InvalidConversionToInteger))
	}
	if f <= -1.0 || f >= 4294967296.0 {
		panic(trap.New(trap.IntegerOverflow))
	}
	return uint32(math.Trunc(f))
}

func truncF64ToI64S(f float64) int64 {
	if math.IsNaN(f) {
		panic(trap.New(trap.InvalidConversionToInteger))
	}
	if f < -9223372036854775808.0 || f >= 9223372036854775808.0 {
		panic(trap.New(trap.IntegerOverflow))
	}
	return int64(math.Trunc(f))
}

func truncF64ToU64(f float64) uint64 {
	if math.IsNaN(f) {
		panic(trap.New(trap.InvalidConversionToInteger))
	}
	if f <= -1.0 || f >= 18446744073709551616.0 {
		panic(trap.New(trap.IntegerOverflow))
	}
	return uint64(math.Trunc(f))
}

func satF64ToI32S(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if t < math.MinInt32 {
		return math.MinInt32
	}
	if t > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(t)
}

func satF64ToU32(f float64) uint32 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	t := math.Trunc(f)
	if t > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(t)
}

func satF64ToI64S(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if t < math.MinInt64 {
		return math.MinInt64
	}
	if t >= 9223372036854775808.0 {
		return math.MaxInt64
	}
	return int64(t)
}

func satF64ToU64(f float64) uint64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	t := math.Trunc(f)
	if t >= 18446744073709551615.0 {
		return math.MaxUint64
	}
	return uint64(t)
}
