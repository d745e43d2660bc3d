package harness

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/roach88/vcore/internal/vdom"
)

// Catalog component names. Each run builds fresh component definitions so
// component ids never leak between scenarios.
const (
	CompCounter  = "counter"
	CompLabel    = "label"
	CompMaybe    = "maybe"
	CompSwitcher = "switcher"
)

var componentNames = []string{CompCounter, CompLabel, CompMaybe, CompSwitcher}

// ComponentNames lists the catalog, sorted.
func ComponentNames() []string { return slices.Clone(componentNames) }

// HasComponent reports whether name is in the catalog.
func HasComponent(name string) bool { return slices.Contains(componentNames, name) }

type counterProps struct{ Initial int }

type labelProps struct{ X int }

type switcherProps struct {
	Child string
	X     int
}

type maybeProps struct{ Show bool }

// cell is a named reactive value a scenario can write.
type cell struct {
	scope *vdom.Scope
	set   func(v any) error
}

// cellTable maps cell names to the most recently mounted cell of that name.
type cellTable map[string]cell

func (t cellTable) lookup(name string) (cell, error) {
	c, ok := t[name]
	if !ok {
		return cell{}, fmt.Errorf("no mounted cell named %q", name)
	}
	return c, nil
}

type cellHook struct{}

// useCell publishes v under name on the scope's first render.
func useCell[T any](s *vdom.Scope, cells cellTable, name string, v vdom.Value[T], conv func(any) (T, error)) {
	vdom.UseHook(s, func() cellHook {
		cells[name] = cell{
			scope: s,
			set: func(x any) error {
				t, err := conv(x)
				if err != nil {
					return fmt.Errorf("cell %s: %w", name, err)
				}
				return v.Set(t)
			},
		}
		return cellHook{}
	})
}

type catalog struct {
	cells      cellTable
	components map[string]*vdom.Component
}

func newCatalog() *catalog {
	c := &catalog{cells: cellTable{}, components: map[string]*vdom.Component{}}

	counter := vdom.Define(CompCounter, func(s *vdom.Scope, p counterProps) (*vdom.VNode, error) {
		count := vdom.UseValue(s, func() int { return p.Initial })
		useCell(s, c.cells, "count", count, toInt)
		n, err := count.Get()
		if err != nil {
			return nil, err
		}
		return vdom.El("div", nil, vdom.Textf("High-Five counter: %d", n)), nil
	})

	label := vdom.DefineComparable(CompLabel, func(s *vdom.Scope, p labelProps) (*vdom.VNode, error) {
		return vdom.El("p", vdom.Attrs("data-x", strconv.Itoa(p.X)), vdom.Text("label")), nil
	})

	switcher := vdom.Define(CompSwitcher, func(s *vdom.Scope, p switcherProps) (*vdom.VNode, error) {
		child := vdom.UseValue(s, func() string { return p.Child })
		x := vdom.UseValue(s, func() int { return p.X })
		useCell(s, c.cells, "child", child, toString)
		useCell(s, c.cells, "x", x, toInt)

		which, err := child.Get()
		if err != nil {
			return nil, err
		}
		xv, err := x.Get()
		if err != nil {
			return nil, err
		}
		var body *vdom.VNode
		switch which {
		case CompLabel:
			body = vdom.Comp(label, labelProps{X: xv})
		case CompCounter:
			body = vdom.Comp(counter, counterProps{Initial: xv})
		default:
			return nil, fmt.Errorf("switcher: unknown child %q", which)
		}
		return vdom.El("div", nil, body), nil
	})

	maybe := vdom.Define(CompMaybe, func(s *vdom.Scope, p maybeProps) (*vdom.VNode, error) {
		show := vdom.UseValue(s, func() bool { return p.Show })
		useCell(s, c.cells, "show", show, toBool)
		on, err := show.Get()
		if err != nil {
			return nil, err
		}
		if !on {
			return nil, nil
		}
		return vdom.Text("shown"), nil
	})

	c.components[CompCounter] = counter
	c.components[CompLabel] = label
	c.components[CompSwitcher] = switcher
	c.components[CompMaybe] = maybe
	return c
}

// root returns the named component and its props built from the scenario's
// props map. Unknown keys are rejected.
func (c *catalog) root(name string, props map[string]any) (*vdom.Component, any, error) {
	comp, ok := c.components[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown component %q", name)
	}

	var err error
	get := func(key string, conv func(any) error) {
		if err != nil {
			return
		}
		if v, ok := props[key]; ok {
			if cerr := conv(v); cerr != nil {
				err = fmt.Errorf("props.%s: %w", key, cerr)
			}
		}
	}
	allow := func(keys ...string) {
		for k := range props {
			if !slices.Contains(keys, k) && err == nil {
				err = fmt.Errorf("props.%s: not accepted by %s", k, name)
			}
		}
	}

	switch name {
	case CompCounter:
		var p counterProps
		allow("initial")
		get("initial", func(v any) (e error) { p.Initial, e = toInt(v); return })
		return comp, p, err
	case CompLabel:
		var p labelProps
		allow("x")
		get("x", func(v any) (e error) { p.X, e = toInt(v); return })
		return comp, p, err
	case CompSwitcher:
		p := switcherProps{Child: CompLabel}
		allow("child", "x")
		get("child", func(v any) (e error) { p.Child, e = toString(v); return })
		get("x", func(v any) (e error) { p.X, e = toInt(v); return })
		return comp, p, err
	case CompMaybe:
		p := maybeProps{Show: true}
		allow("show")
		get("show", func(v any) (e error) { p.Show, e = toBool(v); return })
		return comp, p, err
	}
	return nil, nil, fmt.Errorf("unknown component %q", name)
}

// toInt accepts the integer shapes YAML and CUE decode into.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %s", n)
		}
		return int(i), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return b, nil
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}
