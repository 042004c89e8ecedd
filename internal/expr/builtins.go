package expr

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/num/dual"
)

type builtin struct {
	arity int
	eval  func(a []float64) float64
	dual  func(a []dual.Number) dual.Number
}

func unary(f func(float64) float64, d func(dual.Number) dual.Number) builtin {
	return builtin{
		arity: 1,
		eval:  func(a []float64) float64 { return f(a[0]) },
		dual:  func(a []dual.Number) dual.Number { return d(a[0]) },
	}
}

var builtins = map[string]builtin{
	"sin":   unary(math.Sin, dual.Sin),
	"cos":   unary(math.Cos, dual.Cos),
	"tan":   unary(math.Tan, dual.Tan),
	"asin":  unary(math.Asin, dual.Asin),
	"acos":  unary(math.Acos, dual.Acos),
	"atan":  unary(math.Atan, dual.Atan),
	"sinh":  unary(math.Sinh, dual.Sinh),
	"cosh":  unary(math.Cosh, dual.Cosh),
	"tanh":  unary(math.Tanh, dual.Tanh),
	"exp":   unary(math.Exp, dual.Exp),
	"log":   unary(math.Log, dual.Log),
	"ln":    unary(math.Log, dual.Log),
	"log10": unary(math.Log10, func(d dual.Number) dual.Number { return dual.Scale(1/math.Ln10, dual.Log(d)) }),
	"log2":  unary(math.Log2, func(d dual.Number) dual.Number { return dual.Scale(1/math.Ln2, dual.Log(d)) }),
	"sqrt":  unary(math.Sqrt, dual.Sqrt),
	"abs":   unary(math.Abs, dual.Abs),
	"pow": {
		arity: 2,
		eval:  func(a []float64) float64 { return math.Pow(a[0], a[1]) },
		dual:  func(a []dual.Number) dual.Number { return powDual(a[0], a[1]) },
	},
	"atan2": {
		arity: 2,
		eval:  func(a []float64) float64 { return math.Atan2(a[0], a[1]) },
		dual: func(a []dual.Number) dual.Number {
			y, x := a[0], a[1]
			den := x.Real*x.Real + y.Real*y.Real
			return dual.Number{
				Real: math.Atan2(y.Real, x.Real),
				Emag: (x.Real*y.Emag - y.Real*x.Emag) / den,
			}
		},
	},
	"hypot": {
		arity: 2,
		eval:  func(a []float64) float64 { return math.Hypot(a[0], a[1]) },
		dual: func(a []dual.Number) dual.Number {
			h := math.Hypot(a[0].Real, a[1].Real)
			if h == 0 {
				return dual.Number{}
			}
			return dual.Number{
				Real: h,
				Emag: (a[0].Real*a[0].Emag + a[1].Real*a[1].Emag) / h,
			}
		},
	},
}

// constants maps accepted constant names to their values.
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// powDual keeps integer powers of negative bases finite, which the
// exp/log form of dual.Pow cannot do.
func powDual(base, exp dual.Number) dual.Number {
	if exp.Emag == 0 {
		return dual.PowReal(base, exp.Real)
	}
	return dual.Pow(base, exp)
}

// canonicalName maps accepted spellings onto builtin, constant and
// variable names. JavaScript-style Math.* names are accepted because
// users paste them from the browser console.
func canonicalName(name string) string {
	if rest, ok := strings.CutPrefix(name, "Math."); ok {
		if rest == "PI" || rest == "E" {
			return strings.ToLower(rest)
		}
		return rest
	}
	return name
}

// Functions returns the sorted names of all accepted functions.
func Functions() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
