package ir

// Guard is a boolean condition tree over ports.
type Guard interface {
	isGuard()
}

// TrueGuard is the always-true guard.
type TrueGuard struct{}

func (TrueGuard) isGuard() {}

// PortGuard reads a 1-bit port.
type PortGuard struct {
	Port PortID
}

func (PortGuard) isGuard() {}

// NotGuard negates its inner guard.
type NotGuard struct {
	Inner Guard
}

func (NotGuard) isGuard() {}

// AndGuard is the conjunction of two guards.
type AndGuard struct {
	Left  Guard
	Right Guard
}

func (AndGuard) isGuard() {}

// OrGuard is the disjunction of two guards.
type OrGuard struct {
	Left  Guard
	Right Guard
}

func (OrGuard) isGuard() {}

// EqGuard compares two ports for equality.
type EqGuard struct {
	Left  PortID
	Right PortID
}

func (EqGuard) isGuard() {}

// GeGuard is an unsigned left >= right comparison of two ports.
type GeGuard struct {
	Left  PortID
	Right PortID
}

func (GeGuard) isGuard() {}

// LtGuard is an unsigned left < right comparison of two ports.
type LtGuard struct {
	Left  PortID
	Right PortID
}

func (LtGuard) isGuard() {}

// True returns the always-true guard.
func True() Guard { return TrueGuard{} }

// ReadPort returns a guard reading the given 1-bit port.
func ReadPort(p PortID) Guard { return PortGuard{Port: p} }

// Not negates a guard, folding double negation.
func Not(g Guard) Guard {
	if inner, ok := g.(NotGuard); ok {
		return inner.Inner
	}
	return NotGuard{Inner: g}
}

// And conjoins two guards, folding the true guard away.
func And(l, r Guard) Guard {
	if _, ok := l.(TrueGuard); ok {
		return r
	}
	if _, ok := r.(TrueGuard); ok {
		return l
	}
	return AndGuard{Left: l, Right: r}
}

// Or disjoins two guards.
func Or(l, r Guard) Guard {
	if _, ok := l.(TrueGuard); ok {
		return l
	}
	if _, ok := r.(TrueGuard); ok {
		return r
	}
	return OrGuard{Left: l, Right: r}
}

// Eq compares two ports for equality.
func Eq(l, r PortID) Guard { return EqGuard{Left: l, Right: r} }

// Ge compares two ports with unsigned >=.
func Ge(l, r PortID) Guard { return GeGuard{Left: l, Right: r} }

// Lt compares two ports with unsigned <.
func Lt(l, r PortID) Guard { return LtGuard{Left: l, Right: r} }

// GuardPorts appends every port read by the guard to dst and returns it.
func GuardPorts(g Guard, dst []PortID) []PortID {
	switch gd := g.(type) {
	case TrueGuard:
		return dst
	case PortGuard:
		return append(dst, gd.Port)
	case NotGuard:
		return GuardPorts(gd.Inner, dst)
	case AndGuard:
		return GuardPorts(gd.Right, GuardPorts(gd.Left, dst))
	case OrGuard:
		return GuardPorts(gd.Right, GuardPorts(gd.Left, dst))
	case EqGuard:
		return append(dst, gd.Left, gd.Right)
	case GeGuard:
		return append(dst, gd.Left, gd.Right)
	case LtGuard:
		return append(dst, gd.Left, gd.Right)
	default:
		return dst
	}
}
