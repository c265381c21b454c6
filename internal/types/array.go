package types

import (
	"sort"
	"strconv"
	"strings"

	list "github.com/bahlo/generic-list-go"
)

// Order selects how an array orders its keys during iteration.
type Order uint8

const (
	OrderHash   Order = iota // Unspecified order
	OrderTree                // Sorted keys, numeric keys first and numerically
	OrderLinked              // Insertion order
)

// String returns the order name used by TypeOf-style reporting.
func (o Order) String() string {
	switch o {
	case OrderTree:
		return "tree"
	case OrderLinked:
		return "linked"
	default:
		return "hash"
	}
}

// Array is an AWK associative array. Arrays are shared by reference; only
// CopyFrom duplicates contents.
type Array struct {
	order Order
	vals  map[string]Value
	tree  []string                         // OrderTree: sorted keys
	list  *list.List[string]               // OrderLinked: insertion order
	elems map[string]*list.Element[string] // OrderLinked: key to list node
}

// NewArray creates an empty array with the given ordering discipline.
func NewArray(order Order) *Array {
	a := &Array{order: order, vals: make(map[string]Value)}
	if order == OrderLinked {
		a.list = list.New[string]()
		a.elems = make(map[string]*list.Element[string])
	}
	return a
}

// Order returns the ordering discipline of the array.
func (a *Array) Order() Order {
	return a.order
}

// SetOrder switches the ordering discipline. Existing elements are kept;
// switching to linked order records them in their current iteration order.
func (a *Array) SetOrder(order Order) {
	if order == a.order {
		return
	}
	keys := a.Keys()
	vals := a.vals
	*a = *NewArray(order)
	for _, k := range keys {
		a.Set(k, vals[k])
	}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.vals)
}

// Has reports whether key is present without creating it.
func (a *Array) Has(key string) bool {
	_, ok := a.vals[key]
	return ok
}

// Get returns the element for key and whether it exists.
func (a *Array) Get(key string) (Value, bool) {
	v, ok := a.vals[key]
	return v, ok
}

// Ref returns the element for key, creating an uninitialized element when
// it is missing, as referencing arr[key] does in AWK.
func (a *Array) Ref(key string) Value {
	if v, ok := a.vals[key]; ok {
		return v
	}
	a.Set(key, Uninit())
	return Uninit()
}

// Set stores v under key.
func (a *Array) Set(key string, v Value) {
	if _, ok := a.vals[key]; !ok {
		switch a.order {
		case OrderTree:
			i := sort.Search(len(a.tree), func(i int) bool { return !keyLess(a.tree[i], key) })
			a.tree = append(a.tree, "")
			copy(a.tree[i+1:], a.tree[i:])
			a.tree[i] = key
		case OrderLinked:
			a.elems[key] = a.list.PushBack(key)
		}
	}
	a.vals[key] = v
}

// Delete removes key if present.
func (a *Array) Delete(key string) {
	if _, ok := a.vals[key]; !ok {
		return
	}
	delete(a.vals, key)
	switch a.order {
	case OrderTree:
		i := sort.Search(len(a.tree), func(i int) bool { return !keyLess(a.tree[i], key) })
		if i < len(a.tree) && a.tree[i] == key {
			a.tree = append(a.tree[:i], a.tree[i+1:]...)
		}
	case OrderLinked:
		a.list.Remove(a.elems[key])
		delete(a.elems, key)
	}
}

// Clear removes every element.
func (a *Array) Clear() {
	clear(a.vals)
	a.tree = a.tree[:0]
	if a.order == OrderLinked {
		a.list.Init()
		clear(a.elems)
	}
}

// Keys returns a snapshot of the keys in iteration order. Iterating a
// snapshot lets the loop body add or delete elements safely.
func (a *Array) Keys() []string {
	keys := make([]string, 0, len(a.vals))
	switch a.order {
	case OrderTree:
		keys = append(keys, a.tree...)
	case OrderLinked:
		for e := a.list.Front(); e != nil; e = e.Next() {
			keys = append(keys, e.Value)
		}
	default:
		for k := range a.vals {
			keys = append(keys, k)
		}
	}
	return keys
}

// CopyFrom adds every element of src to a, overwriting equal keys. Nested
// values are copied as they are; arrays held as values stay shared.
func (a *Array) CopyFrom(src *Array) {
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		a.Set(k, v)
	}
}

// keyLess orders integer-looking keys numerically before all other keys,
// which sort as strings.
func keyLess(x, y string) bool {
	xi, xerr := strconv.ParseInt(x, 10, 64)
	yi, yerr := strconv.ParseInt(y, 10, 64)
	switch {
	case xerr == nil && yerr == nil && xi != yi:
		return xi < yi
	case xerr == nil && yerr == nil:
		return x < y
	case xerr == nil:
		return true
	case yerr == nil:
		return false
	}
	return strings.Compare(x, y) < 0
}
