package types

import (
	"errors"
	"math"
)

// ErrDivisionByZero is returned by Div and Mod for a zero divisor.
var ErrDivisionByZero = errors.New("division by zero")

// Add returns a+b. Two integers stay an integer unless the sum overflows.
func Add(a, b Value) Value {
	if a.kind == KindInt && b.kind == KindInt {
		s := a.i + b.i
		if (s > a.i) == (b.i > 0) {
			return Int(s)
		}
	}
	return Double(a.AsNum() + b.AsNum())
}

// Sub returns a-b.
func Sub(a, b Value) Value {
	if a.kind == KindInt && b.kind == KindInt {
		d := a.i - b.i
		if (d < a.i) == (b.i > 0) {
			return Int(d)
		}
	}
	return Double(a.AsNum() - b.AsNum())
}

// Mul returns a*b.
func Mul(a, b Value) Value {
	if a.kind == KindInt && b.kind == KindInt {
		if a.i == 0 || b.i == 0 {
			return Int(0)
		}
		p := a.i * b.i
		if p/b.i == a.i && !(a.i == -1 && b.i == math.MinInt64) && !(b.i == -1 && a.i == math.MinInt64) {
			return Int(p)
		}
	}
	return Double(a.AsNum() * b.AsNum())
}

// Div returns a/b as a double.
func Div(a, b Value) (Value, error) {
	d := b.AsNum()
	if d == 0 {
		return Value{}, ErrDivisionByZero
	}
	return Double(a.AsNum() / d), nil
}

// Mod returns the remainder of a/b with the sign of a.
func Mod(a, b Value) (Value, error) {
	if a.kind == KindInt && b.kind == KindInt && b.i != 0 && b.i != -1 {
		return Int(a.i % b.i), nil
	}
	d := b.AsNum()
	if d == 0 {
		return Value{}, ErrDivisionByZero
	}
	return Double(math.Mod(a.AsNum(), d)), nil
}

// Pow returns a raised to b.
func Pow(a, b Value) Value {
	return Double(math.Pow(a.AsNum(), b.AsNum()))
}

// Neg returns -a.
func Neg(a Value) Value {
	if a.kind == KindInt && a.i != math.MinInt64 {
		return Int(-a.i)
	}
	return Double(-a.AsNum())
}

// Plus returns the numeric value of a (unary plus).
func Plus(a Value) Value {
	if a.kind == KindInt {
		return a
	}
	return Double(a.AsNum())
}

// Arith applies a binary arithmetic operator named by op ('+', '-', '*',
// '/', '%', '^').
func Arith(op byte, a, b Value) (Value, error) {
	switch op {
	case '+':
		return Add(a, b), nil
	case '-':
		return Sub(a, b), nil
	case '*':
		return Mul(a, b), nil
	case '/':
		return Div(a, b)
	case '%':
		return Mod(a, b)
	case '^':
		return Pow(a, b), nil
	}
	return Value{}, errors.New("unknown arithmetic operator")
}
