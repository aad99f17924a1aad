// Package signatures is the static registry of every built-in ValuaScript
// function: its arity, argument types, return-type rule, stochasticity, and
// (where one exists) its constant-folding implementation.
package signatures

import "math"

// ReturnTypeFunc computes a call's return type from its argument types, for
// the handful of builtins whose return type depends on what they're called
// with (e.g. "add" returns "vector" if any argument is a vector).
type ReturnTypeFunc func(argTypes []string) string

// ConstFolder evaluates a call at compile time given already-folded
// constant arguments. It returns ok=false when the call cannot be folded
// (e.g. a runtime error like divide-by-zero, or mismatched vector lengths) -
// in that case the caller leaves the call in the IR for the VM to execute.
type ConstFolder func(args []any) (result any, ok bool)

// Signature describes one built-in function's calling contract.
type Signature struct {
	Variadic     bool
	ArgTypes     []string // "any" matches any single type; empty+Variadic means variadic args are not type-checked against the signature
	ReturnType   string
	ReturnTypeFn ReturnTypeFunc
	IsStochastic bool
	ConstFolder  ConstFolder
}

// ResolveReturnType applies ReturnTypeFn if set, else returns the fixed
// ReturnType.
func (s Signature) ResolveReturnType(argTypes []string) string {
	if s.ReturnTypeFn != nil {
		return s.ReturnTypeFn(argTypes)
	}
	return s.ReturnType
}

func mathReturnType(types []string) string {
	for _, t := range types {
		if t == "any" {
			return "any"
		}
	}
	for _, t := range types {
		if t == "vector" {
			return "vector"
		}
	}
	return "scalar"
}

func identityReturnType(types []string) string {
	if len(types) == 0 {
		return "any"
	}
	return types[0]
}

// --- Constant-folding helpers ---
//
// These mirror the reference implementation's elementwise folder factories:
// scalar op scalar, vector op vector (equal length), and scalar/vector
// broadcasting in either argument position.

func elementwiseFolder(op func(a, b float64) (float64, bool)) ConstFolder {
	return func(args []any) (any, bool) {
		a, b := args[0], args[1]
		switch av := a.(type) {
		case float64:
			switch bv := b.(type) {
			case float64:
				r, ok := op(av, bv)
				return r, ok
			case []float64:
				out := make([]float64, len(bv))
				for i, x := range bv {
					r, ok := op(av, x)
					if !ok {
						return nil, false
					}
					out[i] = r
				}
				return out, true
			}
		case []float64:
			switch bv := b.(type) {
			case float64:
				out := make([]float64, len(av))
				for i, x := range av {
					r, ok := op(x, bv)
					if !ok {
						return nil, false
					}
					out[i] = r
				}
				return out, true
			case []float64:
				if len(av) != len(bv) {
					return nil, false
				}
				out := make([]float64, len(av))
				for i := range av {
					r, ok := op(av[i], bv[i])
					if !ok {
						return nil, false
					}
					out[i] = r
				}
				return out, true
			}
		}
		return nil, false
	}
}

// variadicElementwiseFolder handles add/multiply: any count of scalar/vector
// arguments, all vectors present must share one length, scalars broadcast.
func variadicElementwiseFolder(op func(a, b float64) float64, initial float64) ConstFolder {
	return func(args []any) (any, bool) {
		vecLen := -1
		hasVector := false
		for _, a := range args {
			if v, ok := a.([]float64); ok {
				hasVector = true
				if vecLen == -1 {
					vecLen = len(v)
				} else if vecLen != len(v) {
					return nil, false
				}
			}
		}

		if !hasVector {
			result := initial
			for _, a := range args {
				result = op(result, a.(float64))
			}
			return result, true
		}

		out := make([]float64, vecLen)
		for i := range out {
			out[i] = initial
		}
		first := true
		for _, a := range args {
			switch v := a.(type) {
			case []float64:
				for i := range out {
					if first {
						out[i] = v[i]
					} else {
						out[i] = op(out[i], v[i])
					}
				}
			case float64:
				for i := range out {
					if first {
						out[i] = v
					} else {
						out[i] = op(out[i], v)
					}
				}
			}
			first = false
		}
		return out, true
	}
}

// comparableFolder guards equality folding against vector operands, which
// stay unfolded for the VM to compare.
func comparableFolder(cmp func(a, b any) bool) ConstFolder {
	return func(args []any) (any, bool) {
		for _, a := range args {
			if _, isVec := a.([]float64); isVec {
				return nil, false
			}
		}
		return cmp(args[0], args[1]), true
	}
}

// Registry is the closed set of built-in functions, reserved globally and
// never redefinable by a user function.
var Registry = map[string]Signature{
	// --- Internal comparison & boolean operators ---
	"__eq__":  {ArgTypes: []string{"any", "any"}, ReturnType: "boolean", ConstFolder: comparableFolder(func(a, b any) bool { return a == b })},
	"__neq__": {ArgTypes: []string{"any", "any"}, ReturnType: "boolean", ConstFolder: comparableFolder(func(a, b any) bool { return a != b })},
	"__gt__":  {ArgTypes: []string{"scalar", "scalar"}, ReturnType: "boolean", ConstFolder: func(a []any) (any, bool) { return a[0].(float64) > a[1].(float64), true }},
	"__lt__":  {ArgTypes: []string{"scalar", "scalar"}, ReturnType: "boolean", ConstFolder: func(a []any) (any, bool) { return a[0].(float64) < a[1].(float64), true }},
	"__gte__": {ArgTypes: []string{"scalar", "scalar"}, ReturnType: "boolean", ConstFolder: func(a []any) (any, bool) { return a[0].(float64) >= a[1].(float64), true }},
	"__lte__": {ArgTypes: []string{"scalar", "scalar"}, ReturnType: "boolean", ConstFolder: func(a []any) (any, bool) { return a[0].(float64) <= a[1].(float64), true }},
	"__and__": {Variadic: true, ArgTypes: []string{"boolean"}, ReturnType: "boolean", ConstFolder: func(args []any) (any, bool) {
		for _, a := range args {
			if !a.(bool) {
				return false, true
			}
		}
		return true, true
	}},
	"__or__": {Variadic: true, ArgTypes: []string{"boolean"}, ReturnType: "boolean", ConstFolder: func(args []any) (any, bool) {
		for _, a := range args {
			if a.(bool) {
				return true, true
			}
		}
		return false, true
	}},
	"__not__": {ArgTypes: []string{"boolean"}, ReturnType: "boolean", ConstFolder: func(a []any) (any, bool) { return !a[0].(bool), true }},

	// --- Arithmetic ---
	"add":      {Variadic: true, ArgTypes: []string{}, ReturnTypeFn: mathReturnType, ConstFolder: variadicElementwiseFolder(func(a, b float64) float64 { return a + b }, 0)},
	"subtract": {ArgTypes: []string{"any", "any"}, ReturnTypeFn: mathReturnType, ConstFolder: elementwiseFolder(func(a, b float64) (float64, bool) { return a - b, true })},
	"multiply": {Variadic: true, ArgTypes: []string{}, ReturnTypeFn: mathReturnType, ConstFolder: variadicElementwiseFolder(func(a, b float64) float64 { return a * b }, 1)},
	"divide": {ArgTypes: []string{"any", "any"}, ReturnTypeFn: mathReturnType, ConstFolder: elementwiseFolder(func(a, b float64) (float64, bool) {
		if b == 0 {
			return 0, false
		}
		return a / b, true
	})},
	"power": {ArgTypes: []string{"any", "any"}, ReturnTypeFn: mathReturnType, ConstFolder: elementwiseFolder(func(a, b float64) (float64, bool) { return math.Pow(a, b), true })},

	// identity has no const_folder in the reference, so constant folding
	// never removes it. Copy propagation, tuple forwarding and alias
	// resolution remove the identity bindings they match; any identity left
	// after them reaches the bytecode as an explicit copy.
	"identity": {ArgTypes: []string{"any"}, ReturnTypeFn: identityReturnType},

	"log":   {ArgTypes: []string{"scalar"}, ReturnType: "scalar", ConstFolder: func(a []any) (any, bool) {
		v := a[0].(float64)
		if v <= 0 {
			return nil, false
		}
		return math.Log(v), true
	}},
	"log10": {ArgTypes: []string{"scalar"}, ReturnType: "scalar", ConstFolder: func(a []any) (any, bool) {
		v := a[0].(float64)
		if v <= 0 {
			return nil, false
		}
		return math.Log10(v), true
	}},
	"exp": {ArgTypes: []string{"scalar"}, ReturnType: "scalar", ConstFolder: func(a []any) (any, bool) { return math.Exp(a[0].(float64)), true }},
	"sin": {ArgTypes: []string{"scalar"}, ReturnType: "scalar", ConstFolder: func(a []any) (any, bool) { return math.Sin(a[0].(float64)), true }},
	"cos": {ArgTypes: []string{"scalar"}, ReturnType: "scalar", ConstFolder: func(a []any) (any, bool) { return math.Cos(a[0].(float64)), true }},
	"tan": {ArgTypes: []string{"scalar"}, ReturnType: "scalar", ConstFolder: func(a []any) (any, bool) { return math.Tan(a[0].(float64)), true }},

	// --- Stochastic samplers: never constant-folded, always tainted ---
	"Normal":     {ArgTypes: []string{"scalar", "scalar"}, ReturnType: "scalar", IsStochastic: true},
	"Lognormal":  {ArgTypes: []string{"scalar", "scalar"}, ReturnType: "scalar", IsStochastic: true},
	"Uniform":    {ArgTypes: []string{"scalar", "scalar"}, ReturnType: "scalar", IsStochastic: true},
	"Pert":       {ArgTypes: []string{"scalar", "scalar", "scalar"}, ReturnType: "scalar", IsStochastic: true},
	"Triangular": {ArgTypes: []string{"scalar", "scalar", "scalar"}, ReturnType: "scalar", IsStochastic: true},
	"Bernoulli":  {ArgTypes: []string{"scalar"}, ReturnType: "scalar", IsStochastic: true},
	"Beta":       {ArgTypes: []string{"scalar", "scalar"}, ReturnType: "scalar", IsStochastic: true},

	// --- Financial ---
	"Npv":               {ArgTypes: []string{"scalar", "vector"}, ReturnType: "scalar"},
	"CapitalizeExpenses": {ArgTypes: []string{"scalar", "vector", "scalar"}, ReturnType: "tuple:scalar,scalar"},
	"BlackScholes":      {ArgTypes: []string{"scalar", "scalar", "scalar", "scalar", "scalar", "string"}, ReturnType: "scalar"},

	// --- Series ---
	"CompoundSerie":    {ArgTypes: []string{"scalar", "vector"}, ReturnType: "vector"},
	"GrowSerie":        {ArgTypes: []string{"scalar", "scalar", "scalar"}, ReturnType: "vector"},
	"InterpolateSerie": {ArgTypes: []string{"scalar", "scalar", "scalar"}, ReturnType: "vector"},

	// --- Vector ---
	"ComposeVector": {Variadic: true, ArgTypes: []string{"any"}, ReturnType: "vector"},
	"SumVector":     {ArgTypes: []string{"vector"}, ReturnType: "scalar"},
	"VectorDelta":   {ArgTypes: []string{"vector"}, ReturnType: "vector"},
	"GetElement":    {ArgTypes: []string{"vector", "scalar"}, ReturnType: "scalar"},
	"DeleteElement": {ArgTypes: []string{"vector", "scalar"}, ReturnType: "vector"},
}

// MultiReturnTypes splits a "tuple:a,b" ReturnType marker (used by builtins
// with more than one return value, like CapitalizeExpenses) back into its
// component types. ok is false for any ordinary, single-valued ReturnType.
func MultiReturnTypes(returnType string) (types []string, ok bool) {
	const prefix = "tuple:"
	if len(returnType) <= len(prefix) || returnType[:len(prefix)] != prefix {
		return nil, false
	}
	rest := returnType[len(prefix):]
	start := 0
	for i := 0; i <= len(rest); i++ {
		if i == len(rest) || rest[i] == ',' {
			types = append(types, rest[start:i])
			start = i + 1
		}
	}
	return types, true
}

// IsBuiltin reports whether name is a reserved built-in function name.
func IsBuiltin(name string) bool {
	_, ok := Registry[name]
	return ok
}
