package ext

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kolkov/tawk/internal/block"
	"github.com/kolkov/tawk/internal/types"
)

// Version is reported by Version() for scalar arguments.
const Version = "1.0"

var coreKeywords = []string{
	"Map", "HashMap", "TreeMap", "LinkedMap", "MapUnion", "MapCopy",
	"Array", "TypeOf", "String", "Double", "Halt",
	"NewReference", "NewRef", "Dereference", "DeRef",
	"Unreference", "UnRef", "InRef", "IsInRef", "DumpRefs",
	"Timeout", "Throw", "Version", "Date", "FileExists",
}

// Core provides map construction, array references, type inspection and a
// few utilities.
type Core struct {
	env  *Env
	refs *refTable
}

// NewCore creates the core extension.
func NewCore() *Core {
	return &Core{refs: newRefTable()}
}

func (c *Core) Name() string       { return "Core" }
func (c *Core) Keywords() []string { return coreKeywords }

func (c *Core) Init(env *Env) error {
	c.env = env
	return nil
}

func (c *Core) ArrayParams(keyword string, argc int) []int {
	switch keyword {
	case "Map", "HashMap", "TreeMap", "LinkedMap", "MapUnion":
		if argc%2 == 1 {
			return []int{0}
		}
	case "Array":
		return []int{0}
	case "MapCopy":
		return []int{0, 1}
	case "NewRef", "NewReference":
		if argc == 1 {
			return []int{0}
		}
	}
	return nil
}

func (c *Core) Invoke(ctx context.Context, keyword string, args []types.Value) (types.Value, error) {
	switch keyword {
	case "Map", "HashMap":
		return c.mapOf(keyword, args, types.OrderHash)
	case "TreeMap":
		return c.mapOf(keyword, args, types.OrderTree)
	case "LinkedMap":
		return c.mapOf(keyword, args, types.OrderLinked)
	case "MapUnion":
		if len(args)%2 == 0 {
			return types.Uninit(), argError(keyword, "expecting an array and key/value pairs")
		}
		n, err := c.fill(keyword, args, false, types.OrderHash)
		return types.Int(int64(n)), err
	case "MapCopy":
		return c.mapCopy(keyword, args)
	case "Array":
		return c.array(keyword, args)
	case "TypeOf":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		return types.Str(c.typeOf(args[0])), nil
	case "String":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		if arr := args[0].Array(); arr != nil {
			return types.Str(c.mapString(arr)), nil
		}
		return types.Str(toStr(c.env, args[0])), nil
	case "Double":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		return c.double(keyword, args[0])
	case "Halt":
		code := 0
		switch len(args) {
		case 0:
		case 1:
			code = int(args[0].AsInt())
		default:
			return types.Uninit(), argError(keyword, "expecting 0 or 1 args, got %d", len(args))
		}
		return types.Uninit(), &HaltError{Code: code}
	case "NewRef", "NewReference":
		return c.newRef(keyword, args)
	case "DeRef", "Dereference":
		return c.deref(keyword, args)
	case "UnRef", "Unreference":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		if !c.refs.release(toStr(c.env, args[0])) {
			return types.Uninit(), argError(keyword, "not a reference: %s", toStr(c.env, args[0]))
		}
		return types.Int(1), nil
	case "InRef":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		key, err := c.refs.nextKey(toStr(c.env, args[0]))
		if err != nil {
			return types.Uninit(), argError(keyword, "%v", err)
		}
		return types.StrNum(key), nil
	case "IsInRef":
		if err := checkArgs(keyword, args, 2); err != nil {
			return types.Uninit(), err
		}
		arr, err := c.refs.get(toStr(c.env, args[0]))
		if err != nil {
			return types.Uninit(), argError(keyword, "%v", err)
		}
		return types.Bool(arr.Has(toStr(c.env, args[1]))), nil
	case "DumpRefs":
		if err := checkArgs(keyword, args, 0); err != nil {
			return types.Uninit(), err
		}
		for _, h := range c.refs.handlesInOrder() {
			arr, _ := c.refs.get(h)
			fmt.Fprintf(c.env.Output, "REF : %s = %s\n", h, c.mapString(arr))
		}
		return types.Uninit(), nil
	case "Timeout":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		ms := args[0].AsInt()
		if ms <= 0 {
			return types.Uninit(), argError(keyword, "requires a positive # argument, not %d", ms)
		}
		return types.Opaque(block.After("Timeout", time.Duration(ms)*time.Millisecond)), nil
	case "Throw":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = c.display(a)
		}
		return types.Uninit(), fmt.Errorf("Throw: [%s]", strings.Join(parts, ", "))
	case "Version":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		if arr := args[0].Array(); arr != nil {
			return types.Str(arr.Order().String()), nil
		}
		return types.Str(Version), nil
	case "Date":
		now := time.Now()
		switch len(args) {
		case 0:
			return types.Str(now.Format("Mon Jan 02 15:04:05 MST 2006")), nil
		case 1:
			return types.Str(now.Format(dateLayout(toStr(c.env, args[0])))), nil
		}
		return types.Uninit(), argError(keyword, "expecting 0 or 1 args, got %d", len(args))
	case "FileExists":
		if err := checkArgs(keyword, args, 1); err != nil {
			return types.Uninit(), err
		}
		_, err := os.Stat(toStr(c.env, args[0]))
		return types.Bool(err == nil), nil
	}
	return types.Uninit(), fmt.Errorf("%s: not implemented", keyword)
}

// mapOf fills args[0] when the argument count is odd and otherwise builds
// an anonymous array from the pairs.
func (c *Core) mapOf(keyword string, args []types.Value, order types.Order) (types.Value, error) {
	if len(args)%2 == 1 {
		n, err := c.fill(keyword, args, true, order)
		return types.Int(int64(n)), err
	}
	arr := types.NewArray(order)
	for i := 0; i < len(args); i += 2 {
		arr.Set(c.element(args[i]).AsStr(c.env.Vars.CONVFMT()), c.element(args[i+1]))
	}
	return types.ArrayValue(arr), nil
}

func (c *Core) fill(keyword string, args []types.Value, reset bool, order types.Order) (int, error) {
	arr := args[0].Array()
	if arr == nil {
		return 0, argError(keyword, "first argument must be an array")
	}
	if reset {
		arr.Clear()
		arr.SetOrder(order)
	}
	n := 0
	for i := 1; i+1 < len(args); i += 2 {
		arr.Set(c.element(args[i]).AsStr(c.env.Vars.CONVFMT()), c.element(args[i+1]))
		n++
	}
	return n, nil
}

// element turns an array argument into a reference handle so it can be
// stored as a scalar.
func (c *Core) element(v types.Value) types.Value {
	if arr := v.Array(); arr != nil {
		return types.Str(c.refs.add(arr))
	}
	return v
}

func (c *Core) mapCopy(keyword string, args []types.Value) (types.Value, error) {
	if err := checkArgs(keyword, args, 2); err != nil {
		return types.Uninit(), err
	}
	dst, src := args[0].Array(), args[1].Array()
	if dst == nil || src == nil {
		return types.Uninit(), argError(keyword, "both arguments must be arrays")
	}
	if dst == src {
		return types.Int(int64(dst.Len())), nil
	}
	dst.Clear()
	dst.CopyFrom(src)
	return types.Int(int64(src.Len())), nil
}

func (c *Core) array(keyword string, args []types.Value) (types.Value, error) {
	if len(args) == 0 {
		return types.Uninit(), argError(keyword, "expecting at least 1 arg")
	}
	arr := args[0].Array()
	if arr == nil {
		return types.Uninit(), argError(keyword, "first argument must be an array")
	}
	arr.Clear()
	arr.SetOrder(types.OrderTree)
	subsep := c.env.Vars.SUBSEP()
	for i, a := range args[1:] {
		idx := strconv.Itoa(i + 1)
		if src := a.Array(); src != nil {
			for _, k := range src.Keys() {
				v, _ := src.Get(k)
				arr.Set(idx+subsep+k, v)
			}
			continue
		}
		arr.Set(idx, a)
	}
	return types.Int(int64(len(args) - 1)), nil
}

func (c *Core) typeOf(v types.Value) string {
	switch v.Kind() {
	case types.KindArray:
		return "AssocArray"
	case types.KindInt:
		return "Integer"
	case types.KindDouble:
		return "Double"
	case types.KindOpaque:
		return "BlockObject"
	}
	if c.refs.has(v.AsStr(c.env.Vars.CONVFMT())) {
		return "Reference"
	}
	return "String"
}

func (c *Core) double(keyword string, v types.Value) (types.Value, error) {
	switch v.Kind() {
	case types.KindArray:
		return types.Uninit(), argError(keyword, "cannot deduce double value from an associative array")
	case types.KindInt, types.KindDouble:
		return types.Double(v.AsNum()), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(toStr(c.env, v)), 64)
	if err != nil {
		return types.Str(""), nil
	}
	return types.Double(f), nil
}

func (c *Core) newRef(keyword string, args []types.Value) (types.Value, error) {
	switch len(args) {
	case 1:
		arr := args[0].Array()
		if arr == nil {
			return types.Uninit(), argError(keyword, "argument must be an array")
		}
		return types.Str(c.refs.add(arr)), nil
	case 3:
		arr, err := c.refs.get(toStr(c.env, args[0]))
		if err != nil {
			return types.Uninit(), argError(keyword, "%v", err)
		}
		val := c.element(args[2])
		arr.Set(c.element(args[1]).AsStr(c.env.Vars.CONVFMT()), val)
		return val, nil
	}
	return types.Uninit(), argError(keyword, "expecting 1 or 3 args, got %d", len(args))
}

// deref resolves a handle, following chains of handles stored as values.
func (c *Core) deref(keyword string, args []types.Value) (types.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return types.Uninit(), argError(keyword, "expecting 1 or 2 args, got %d", len(args))
	}
	if arr := args[0].Array(); arr != nil {
		if len(args) == 1 {
			return args[0], nil
		}
		v, _ := arr.Get(toStr(c.env, args[1]))
		return c.resolve(v), nil
	}
	arr, err := c.refs.get(toStr(c.env, args[0]))
	if err != nil {
		return types.Uninit(), argError(keyword, "%v", err)
	}
	if len(args) == 1 {
		return types.ArrayValue(arr), nil
	}
	v, _ := arr.Get(toStr(c.env, args[1]))
	return c.resolve(v), nil
}

func (c *Core) resolve(v types.Value) types.Value {
	if v.Kind() != types.KindStr {
		return v
	}
	if arr, err := c.refs.get(v.AsStr("")); err == nil {
		return types.ArrayValue(arr)
	}
	return v
}

// mapString renders an array as {k=v, k=v}.
func (c *Core) mapString(arr *types.Array) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range arr.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := arr.Get(k)
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(c.display(v))
	}
	sb.WriteByte('}')
	return sb.String()
}

func (c *Core) display(v types.Value) string {
	if arr := v.Array(); arr != nil {
		return c.mapString(arr)
	}
	return toStr(c.env, v)
}

// refTable keeps referenced arrays in an arena. A handle is the printable
// form of an arena index; the handle map is the only way to reach a slot.
type refTable struct {
	arena   []*types.Array
	handles map[string]int
	iters   map[string][]string
}

func newRefTable() *refTable {
	return &refTable{handles: make(map[string]int), iters: make(map[string][]string)}
}

func (t *refTable) add(arr *types.Array) string {
	idx := len(t.arena)
	t.arena = append(t.arena, arr)
	h := fmt.Sprintf("@REFERENCE@ %d <AssocArray>", idx)
	t.handles[h] = idx
	return h
}

func (t *refTable) has(handle string) bool {
	_, ok := t.handles[handle]
	return ok
}

func (t *refTable) get(handle string) (*types.Array, error) {
	idx, ok := t.handles[handle]
	if !ok {
		return nil, fmt.Errorf("not a reference: %s", handle)
	}
	return t.arena[idx], nil
}

func (t *refTable) release(handle string) bool {
	idx, ok := t.handles[handle]
	if !ok {
		return false
	}
	delete(t.handles, handle)
	delete(t.iters, handle)
	t.arena[idx] = nil
	return true
}

// nextKey returns the next key of a key snapshot taken on the first call.
// After the last key it returns "" and forgets the snapshot.
func (t *refTable) nextKey(handle string) (string, error) {
	arr, err := t.get(handle)
	if err != nil {
		return "", err
	}
	keys, ok := t.iters[handle]
	if !ok {
		keys = arr.Keys()
	}
	if len(keys) == 0 {
		delete(t.iters, handle)
		return "", nil
	}
	t.iters[handle] = keys[1:]
	return keys[0], nil
}

func (t *refTable) handlesInOrder() []string {
	out := make([]string, len(t.arena))
	for h, idx := range t.handles {
		out[idx] = h
	}
	live := out[:0]
	for _, h := range out {
		if h != "" {
			live = append(live, h)
		}
	}
	return live
}

// dateLayout converts a SimpleDateFormat-style pattern (yyyy-MM-dd HH:mm:ss)
// into a time layout. Quoted text is copied literally.
func dateLayout(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); {
		ch := pattern[i]
		if ch == '\'' {
			i++
			if i < len(pattern) && pattern[i] == '\'' {
				sb.WriteByte('\'')
				i++
				continue
			}
			for i < len(pattern) {
				if pattern[i] == '\'' {
					if i+1 < len(pattern) && pattern[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				sb.WriteByte(pattern[i])
				i++
			}
			continue
		}
		j := i
		for j < len(pattern) && pattern[j] == ch {
			j++
		}
		n := j - i
		i = j
		switch ch {
		case 'y':
			if n == 2 {
				sb.WriteString("06")
			} else {
				sb.WriteString("2006")
			}
		case 'M':
			switch {
			case n == 1:
				sb.WriteString("1")
			case n == 2:
				sb.WriteString("01")
			case n == 3:
				sb.WriteString("Jan")
			default:
				sb.WriteString("January")
			}
		case 'd':
			if n == 1 {
				sb.WriteString("2")
			} else {
				sb.WriteString("02")
			}
		case 'H':
			sb.WriteString("15")
		case 'h':
			if n == 1 {
				sb.WriteString("3")
			} else {
				sb.WriteString("03")
			}
		case 'm':
			if n == 1 {
				sb.WriteString("4")
			} else {
				sb.WriteString("04")
			}
		case 's':
			if n == 1 {
				sb.WriteString("5")
			} else {
				sb.WriteString("05")
			}
		case 'S':
			sb.WriteString(strings.Repeat("0", n))
		case 'E':
			if n < 4 {
				sb.WriteString("Mon")
			} else {
				sb.WriteString("Monday")
			}
		case 'a':
			sb.WriteString("PM")
		case 'z':
			sb.WriteString("MST")
		case 'Z':
			sb.WriteString("-0700")
		default:
			sb.WriteString(strings.Repeat(string(ch), n))
		}
	}
	return sb.String()
}
