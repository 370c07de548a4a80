package arena

// Temp is a saved arena position. Ending it restores the position and so
// reclaims everything pushed since Begin in O(1).
//
// Temps on the same arena must end in strict LIFO order. Ending an outer
// Temp before an inner one silently invalidates the inner one.
//
// The zero Temp is the "no scratch available" value returned by
// ThreadContext.GetScratch; ending it does nothing.
type Temp struct {
	arena *Arena
	pos   int
}

// Begin saves a's current position.
func Begin(a *Arena) Temp {
	return Temp{arena: a, pos: a.pos}
}

// End restores the saved position.
func (t Temp) End() {
	if t.arena == nil {
		return
	}
	t.arena.pos = t.pos
}

// Arena returns the arena the Temp was taken on (nil for the zero Temp).
func (t Temp) Arena() *Arena {
	return t.arena
}

// Position returns the saved position.
func (t Temp) Position() int {
	return t.pos
}

// IsZero reports whether t is the zero Temp.
func (t Temp) IsZero() bool {
	return t.arena == nil
}

// Scope runs fn inside a Temp on a. The Temp is ended on every exit path,
// including a panic in fn.
func Scope(a *Arena, fn func(Temp) error) error {
	t := Begin(a)
	defer t.End()
	return fn(t)
}
