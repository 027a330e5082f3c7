package scene

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/ptime"
	"github.com/pthm-cable/pflow/telemetry"
)

// Population samples particle speeds and ages for telemetry. At most
// maxSamples particles are read per group; 0 reads them all.
func (s *Simulation) Population(maxSamples int) telemetry.Population {
	pop := telemetry.Population{Systems: s.reg.SystemCount()}
	for _, g := range s.reg.Groups() {
		pop.Groups++
		v := g.View()
		n := v.Count()
		pop.Particles += n
		if n == 0 {
			continue
		}
		stride := 1
		if maxSamples > 0 && n > maxSamples {
			stride = (n + maxSamples - 1) / maxSamples
		}
		if sp, ok := channel.Read[r3.Vec](v, channel.Speed); ok {
			for i := 0; i < n; i += stride {
				pop.Speeds = append(pop.Speeds, r3.Norm(sp.Value(i)))
			}
		}
		if bt, ok := channel.Read[ptime.Time](v, channel.BirthTime); ok {
			for i := 0; i < n; i += stride {
				pop.Ages = append(pop.Ages, g.SyncTime().Sub(bt.Value(i)).Seconds())
			}
		}
	}
	return pop
}
