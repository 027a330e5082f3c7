package group

import (
	"fmt"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// snapshot is a cached frame.
type snapshot struct {
	time      ptime.Time
	container *channel.Container
	streams   map[node.Handle][]byte
}

// captureStates saves the random stream of every action for this group.
func (g *Group) captureStates(r *action.Resolved) map[node.Handle][]byte {
	out := make(map[node.Handle][]byte, len(r.Actions))
	for _, n := range r.Actions {
		p, err := n.Streams.Marshal(g.streamKey())
		if err != nil {
			g.log.Warn("capture stream", "action", n.Name, "error", err)
			continue
		}
		out[n.Handle] = p
	}
	return out
}

func (g *Group) restoreStates(r *action.Resolved, states map[node.Handle][]byte) {
	for _, n := range r.Actions {
		p, ok := states[n.Handle]
		if !ok {
			continue
		}
		if err := n.Streams.Unmarshal(g.streamKey(), p); err != nil {
			g.log.Warn("restore stream", "action", n.Name, "error", err)
		}
	}
}

// remember caches the current frame, keeping the newest CacheFrames.
func (g *Group) remember() {
	if g.opts.CacheFrames <= 0 {
		return
	}
	if n := len(g.cache); n > 0 && g.cache[n-1].time.Equal(g.sync) {
		g.cache = g.cache[:n-1]
	}
	snap := snapshot{
		time:      g.sync,
		container: g.container.Clone(),
	}
	if g.resolved != nil {
		snap.streams = g.captureStates(g.resolved)
	}
	g.cache = append(g.cache, snap)
	if over := len(g.cache) - g.opts.CacheFrames; over > 0 {
		clear(g.cache[:over])
		g.cache = g.cache[over:]
	}
}

// nearest returns the index of the latest cached frame at or before t.
func (g *Group) nearest(t ptime.Time) int {
	for i := len(g.cache) - 1; i >= 0; i-- {
		if g.cache[i].time.LessEq(t) {
			return i
		}
	}
	return -1
}

// IsSync reports whether every particle is at t. If not, it returns the
// nearest earlier time the group can resume from: a cached frame or the
// current sync time.
func (g *Group) IsSync(t ptime.Time) (bool, ptime.Time) {
	if g.sync.Equal(t) {
		return true, t
	}
	var best ptime.Time
	found := false
	if g.sync.Less(t) {
		best, found = g.sync, true
	}
	if i := g.nearest(t); i >= 0 && (!found || best.Less(g.cache[i].time)) {
		best, found = g.cache[i].time, true
	}
	if !found {
		return false, ptime.Forever.Start
	}
	return false, best
}

// rewind restores the latest cached frame at or before t and drops the
// newer ones. Born indices are not handed out again.
func (g *Group) rewind(t ptime.Time) error {
	i := g.nearest(t)
	if i < 0 {
		return fmt.Errorf("rewind to %s: %w", t, ErrNoCache)
	}
	snap := g.cache[i]
	g.container = snap.container.Clone()
	g.sync = snap.time
	g.surplus = nil
	if g.resolved != nil && snap.streams != nil {
		g.restoreStates(g.resolved, snap.streams)
	}
	clear(g.cache[i+1:])
	g.cache = g.cache[:i+1]
	g.InvalidateContainer(InvalidBoth)
	return nil
}

// CachedTimes returns the times of the cached frames, oldest first.
func (g *Group) CachedTimes() []ptime.Time {
	out := make([]ptime.Time, len(g.cache))
	for i, s := range g.cache {
		out[i] = s.time
	}
	return out
}
