package chat

// CursorState is the state of one pagination direction.
type CursorState int

const (
	CursorIdle CursorState = iota
	CursorLoading
	CursorExhausted
)

func (s CursorState) String() string {
	switch s {
	case CursorIdle:
		return "idle"
	case CursorLoading:
		return "loading"
	case CursorExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Direction selects which end of the window a fetch extends.
type Direction int

const (
	Older Direction = iota
	Newer
)

func (d Direction) String() string {
	if d == Newer {
		return "newer"
	}
	return "older"
}

// PaginationCursor tracks the older and newer fetch state of one channel.
// At most one request per direction is in flight; Begin refuses the rest.
type PaginationCursor struct {
	older CursorState
	newer CursorState
}

// Begin moves dir from idle to loading. It reports false when the
// direction is already loading or exhausted, in which case nothing should be fetched.
func (c *PaginationCursor) Begin(dir Direction) bool {
	state := c.state(dir)
	if *state != CursorIdle {
		return false
	}
	*state = CursorLoading
	return true
}

// Finish settles dir after a fetch returned n items for a page of pageSize.
func (c *PaginationCursor) Finish(dir Direction, n, pageSize int) {
	state := c.state(dir)
	if n < pageSize {
		*state = CursorExhausted
		return
	}
	*state = CursorIdle
}

// Fail returns a loading direction to idle so it can be retried.
func (c *PaginationCursor) Fail(dir Direction) {
	state := c.state(dir)
	if *state == CursorLoading {
		*state = CursorIdle
	}
}

// Reopen clears exhaustion on dir; new messages make "newer" fetchable again.
func (c *PaginationCursor) Reopen(dir Direction) {
	state := c.state(dir)
	if *state == CursorExhausted {
		*state = CursorIdle
	}
}

func (c *PaginationCursor) Reset() {
	c.older = CursorIdle
	c.newer = CursorIdle
}

func (c *PaginationCursor) State(dir Direction) CursorState {
	return *c.state(dir)
}

func (c *PaginationCursor) state(dir Direction) *CursorState {
	if dir == Newer {
		return &c.newer
	}
	return &c.older
}
