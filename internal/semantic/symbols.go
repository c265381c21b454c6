package semantic

import (
	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/token"
)

// Scope tells a backend where a resolved name lives.
type Scope int

const (
	ScopeGlobal  Scope = iota // Global variable, addressed by name until offsets are assigned
	ScopeLocal                // Function parameter, addressed by parameter index
	ScopeSpecial              // Special variable (NR, NF, FS, ...), addressed by SpecialVarIndex
)

// String returns a human-readable name for the scope.
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeLocal:
		return "local"
	case ScopeSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// VarType represents the type of a variable (scalar or array).
// AWK infers types based on usage context.
type VarType int

const (
	TypeUnknown VarType = iota // Not yet determined
	TypeScalar                 // Scalar value (string or number)
	TypeArray                  // Associative array
)

// String returns a human-readable name for the variable type.
func (t VarType) String() string {
	switch t {
	case TypeUnknown:
		return "unknown"
	case TypeScalar:
		return "scalar"
	case TypeArray:
		return "array"
	default:
		return "invalid"
	}
}

// Ref is a resolved variable reference.
type Ref struct {
	Name  string
	Scope Scope
	Index int // Parameter index or special index; -1 for globals
	Type  VarType
}

// FuncInfo holds resolved information about a user-defined function.
type FuncInfo struct {
	Name   string
	Index  int // Declaration order
	Decl   *ast.FuncDecl
	Params []string
	Kinds  []VarType // Inferred kind of each parameter
	Called bool
}

// Link is the resolved target of a call expression: a user function or an
// extension keyword.
type Link struct {
	Func    *FuncInfo
	Keyword string
	Ext     bool
}

// Extensions is what the resolver needs to know about extension keywords.
// ArrayParams lists the argument positions that must be bound to arrays
// when keyword is called with argc arguments.
type Extensions interface {
	Lookup(keyword string) bool
	ArrayParams(keyword string, argc int) []int
}

// specialVars lists all AWK special variables with their indices.
// These are pre-defined and have special semantics.
var specialVars = map[string]int{
	"ARGC":     1,
	"ARGV":     2, // Array
	"CONVFMT":  3,
	"ENVIRON":  4, // Array
	"FILENAME": 5,
	"FNR":      6,
	"FS":       7,
	"NF":       8,
	"NR":       9,
	"OFMT":     10,
	"OFS":      11,
	"ORS":      12,
	"RLENGTH":  13,
	"RS":       14,
	"RSTART":   15,
	"SUBSEP":   16,
}

// NumSpecials is one more than the highest special variable index, so
// index-addressed tables can be sized with it.
const NumSpecials = 17

// Special variable indices used by the backends.
const (
	SpecARGC     = 1
	SpecARGV     = 2
	SpecCONVFMT  = 3
	SpecENVIRON  = 4
	SpecFILENAME = 5
	SpecFNR      = 6
	SpecFS       = 7
	SpecNF       = 8
	SpecNR       = 9
	SpecOFMT     = 10
	SpecOFS      = 11
	SpecORS      = 12
	SpecRLENGTH  = 13
	SpecRS       = 14
	SpecRSTART   = 15
	SpecSUBSEP   = 16
)

// IsSpecialVar returns true if name is a special AWK variable.
func IsSpecialVar(name string) bool {
	_, ok := specialVars[name]
	return ok
}

// SpecialVarIndex returns the index of a special variable, or -1 if not special.
func SpecialVarIndex(name string) int {
	if idx, ok := specialVars[name]; ok {
		return idx
	}
	return -1
}

// SpecialVarName returns the name of the special variable with index idx.
func SpecialVarName(idx int) string {
	for name, i := range specialVars {
		if i == idx {
			return name
		}
	}
	return ""
}

// IsSpecialArray returns true if name is a special array variable.
func IsSpecialArray(name string) bool {
	return name == "ARGV" || name == "ENVIRON"
}

// BuiltinInfo holds the argument counts a builtin accepts.
type BuiltinInfo struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 for variadic
}

var builtinFuncs = map[token.Token]BuiltinInfo{
	// String functions
	token.F_LENGTH:  {"length", 0, 1},
	token.F_SUBSTR:  {"substr", 2, 3},
	token.F_INDEX:   {"index", 2, 2},
	token.F_SPLIT:   {"split", 2, 3},
	token.F_SUB:     {"sub", 2, 3},
	token.F_GSUB:    {"gsub", 2, 3},
	token.F_MATCH:   {"match", 2, 2},
	token.F_SPRINTF: {"sprintf", 1, -1},
	token.F_TOLOWER: {"tolower", 1, 1},
	token.F_TOUPPER: {"toupper", 1, 1},

	// Math functions
	token.F_SIN:   {"sin", 1, 1},
	token.F_COS:   {"cos", 1, 1},
	token.F_ATAN2: {"atan2", 2, 2},
	token.F_EXP:   {"exp", 1, 1},
	token.F_LOG:   {"log", 1, 1},
	token.F_SQRT:  {"sqrt", 1, 1},
	token.F_INT:   {"int", 1, 1},
	token.F_RAND:  {"rand", 0, 0},
	token.F_SRAND: {"srand", 0, 1},

	// I/O functions
	token.F_CLOSE:  {"close", 1, 1},
	token.F_FFLUSH: {"fflush", 0, 1},
	token.F_SYSTEM: {"system", 1, 1},
}

// GetBuiltinInfo returns information about a built-in function.
func GetBuiltinInfo(fn token.Token) (BuiltinInfo, bool) {
	info, ok := builtinFuncs[fn]
	return info, ok
}
