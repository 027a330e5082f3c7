package group

// Invalidation says which consumers must refresh.
type Invalidation uint8

const (
	InvalidViewport Invalidation = 1 << iota
	InvalidRender
	InvalidBoth = InvalidViewport | InvalidRender
)

func (k Invalidation) String() string {
	switch k {
	case InvalidViewport:
		return "viewport"
	case InvalidRender:
		return "render"
	case InvalidBoth:
		return "both"
	}
	return "none"
}

func (g *Group) proceeding() bool {
	return g.opts.Proceeding != nil && g.opts.Proceeding.Load()
}

// InvalidateContainer tells consumers the particles changed. While the
// scene is proceeding the notice is held until Flush.
func (g *Group) InvalidateContainer(kind Invalidation) {
	if kind == 0 {
		return
	}
	if g.proceeding() {
		g.pending |= kind
		return
	}
	g.notify(kind)
}

// InvalidateCaches drops the cached frames and invalidates the container.
func (g *Group) InvalidateCaches(kind Invalidation) {
	if kind == 0 {
		return
	}
	clear(g.cache)
	g.cache = g.cache[:0]
	g.InvalidateContainer(kind)
}

// Pending returns the invalidation held back during proceeding.
func (g *Group) Pending() Invalidation { return g.pending }

// Flush delivers held invalidation. Call it once proceeding has ended.
func (g *Group) Flush() {
	if g.pending == 0 || g.proceeding() {
		return
	}
	kind := g.pending
	g.pending = 0
	g.notify(kind)
}

func (g *Group) notify(kind Invalidation) {
	if g.opts.OnInvalidate != nil {
		g.opts.OnInvalidate(g, kind)
	}
}
