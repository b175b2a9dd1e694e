package compiler

import "github.com/robert-at-pretension-io/fsm-lower/internal/ast"

// Attrs returns the attribute record of sym, or nil when none was set. The
// record must be treated as read-only; use the setters to change it.
func (c *Context) Attrs(sym *ast.Symbol) *ast.Attributes {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attrs[sym]
}

func (c *Context) update(sym *ast.Symbol, f func(a *ast.Attributes)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.attrs[sym]
	if a == nil {
		a = &ast.Attributes{}
		c.attrs[sym] = a
	}
	f(a)
}

// Init is the initializer recorded for sym.
func (c *Context) Init(sym *ast.Symbol) ast.Expr {
	if a := c.Attrs(sym); a != nil {
		return a.Init
	}
	return nil
}

func (c *Context) SetInit(sym *ast.Symbol, init ast.Expr) {
	c.update(sym, func(a *ast.Attributes) { a.Init = init })
}

func (c *Context) Role(sym *ast.Symbol) ast.Role {
	if a := c.Attrs(sym); a != nil {
		return a.Role
	}
	return ast.RoleNone
}

func (c *Context) SetRole(sym *ast.Symbol, role ast.Role) {
	c.update(sym, func(a *ast.Attributes) { a.Role = role })
}

// LiftedFrom is the outer symbol that sym was created to alias.
func (c *Context) LiftedFrom(sym *ast.Symbol) *ast.Symbol {
	if a := c.Attrs(sym); a != nil {
		return a.LiftedFrom
	}
	return nil
}

func (c *Context) SetLiftedFrom(sym, outer *ast.Symbol) {
	c.update(sym, func(a *ast.Attributes) {
		a.LiftedFrom = outer
		a.Role = ast.RoleLifted
	})
}

// Interconnect returns the variable wired to port name of the stack sym.
func (c *Context) Interconnect(sym *ast.Symbol, name string) *ast.Symbol {
	if a := c.Attrs(sym); a != nil {
		return a.Interconnect[name]
	}
	return nil
}

func (c *Context) SetInterconnect(sym *ast.Symbol, name string, v *ast.Symbol) {
	c.update(sym, func(a *ast.Attributes) {
		if a.Interconnect == nil {
			a.Interconnect = make(map[string]*ast.Symbol)
		}
		a.Interconnect[name] = v
	})
}
