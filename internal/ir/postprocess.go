package ir

// PostProcess resolves every address to an absolute tuple index and assigns
// global offsets. It is idempotent.
func PostProcess(p *Program) error {
	n := len(p.Tuples)
	resolve := func(a *Address, what string) error {
		if a == nil {
			return buildErrorf("%s has no target", what)
		}
		if a.ID < 0 || a.ID >= len(p.Labels) {
			return buildErrorf("%s: unknown address %d", what, a.ID)
		}
		idx := p.Labels[a.ID]
		if idx < 0 || idx >= n {
			return buildErrorf("%s: address %s is not placed on a tuple", what, a)
		}
		a.Index = idx
		return nil
	}

	for i := range p.Tuples {
		t := &p.Tuples[i]
		if !t.Op.Jumps() {
			continue
		}
		if err := resolve(t.Target, t.Op.String()); err != nil {
			return err
		}
		if t.Op == Call {
			fi := t.Arg(0)
			if fi < 0 || fi >= len(p.Funcs) {
				return buildErrorf("call to unknown function %d", fi)
			}
		}
	}
	for i := range p.Funcs {
		f := &p.Funcs[i]
		if err := resolve(f.Entry, "function "+f.Name); err != nil {
			return err
		}
		if p.Tuples[f.Entry.Index].Op != Function {
			return buildErrorf("function %s entry is not a Function tuple", f.Name)
		}
	}

	p.Globals = AssignGlobals(p)
	offsets := make(map[string]int, len(p.Globals))
	for i, g := range p.Globals {
		offsets[g.Name] = i
	}
	for i := range p.Tuples {
		t := &p.Tuples[i]
		if name, ok := t.GlobalName(); ok {
			pos, _ := t.VarArg()
			t.Args[pos+1] = offsets[name]
		}
	}
	return nil
}

// AssignGlobals computes the global storage layout of p: one offset per
// distinct global name, in order of first appearance in the tuple
// sequence. It does not modify p, so both backends can call it.
func AssignGlobals(p *Program) []Global {
	var globals []Global
	seen := make(map[string]bool)
	for i := range p.Tuples {
		name, ok := p.Tuples[i].GlobalName()
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		globals = append(globals, Global{Name: name, Array: p.Arrays[name]})
	}
	return globals
}
