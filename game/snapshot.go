package game

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pthm-cable/pflow/archive"
)

// SaveSnapshot writes the simulation state to path.
func (g *Game) SaveSnapshot(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	w := archive.NewWriter(bw)
	if err := g.sim.Save(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	g.log.Info("snapshot saved", "path", path, "frame", g.sim.Frames())
	return f.Close()
}

// LoadSnapshot rebuilds the scene and restores the state saved at path.
// The scene file must be the one the snapshot was taken from.
func (g *Game) LoadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	if err := g.rebuild(); err != nil {
		return err
	}
	// Handles match because the graph is rebuilt from the same scene.
	if err := g.sim.Load(archive.NewReader(bufio.NewReader(f)), nil); err != nil {
		return err
	}
	g.log.Info("snapshot loaded", "path", path, "frame", g.sim.Frames())
	return nil
}
