package inspector

import (
	"testing"

	"github.com/mlange-42/ark/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/components"
	"github.com/pthm-cable/pflow/ptime"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag    string
		widget Widget
		hints  Hints
	}{
		{"", WidgetAuto, Hints{Max: 1}},
		{"bar,max:10", WidgetBar, Hints{Max: 10}},
		{"bar,max:x", WidgetBar, Hints{Max: 1}},
		{"bar,max:-2", WidgetBar, Hints{Max: 1}},
		{"label, fmt:%.3f", WidgetLabel, Hints{Max: 1, Format: "%.3f"}},
		{"vec", WidgetVec, Hints{Max: 1}},
		{"interval", WidgetInterval, Hints{Max: 1}},
		{"skip", WidgetSkip, Hints{Max: 1}},
		{"unknown,color:red", WidgetAuto, Hints{Max: 1}},
	}
	for _, tc := range tests {
		w, h := ParseTag(tc.tag)
		assert.Equal(t, tc.widget, w, tc.tag)
		assert.Equal(t, tc.hints, h, tc.tag)
	}
}

func TestExtractFieldsSkipsTagged(t *testing.T) {
	sys := &components.System{Name: "fountain", Life: ptime.Forever}
	fields := ExtractFields(sys)

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Name", "Life"}, names)
	assert.Equal(t, WidgetInterval, fields[1].Widget)
}

func TestExtractFieldsEmitter(t *testing.T) {
	em := components.Emitter{Position: r3.Vec{X: 1, Y: 2, Z: 3}, Importance: 4, MaxParticles: 100}
	fields := ExtractFields(em)
	require.Len(t, fields, 3)

	assert.Equal(t, WidgetVec, fields[0].Widget)
	assert.Equal(t, WidgetBar, fields[1].Widget)
	assert.Equal(t, 10.0, fields[1].Hints.Max)
	assert.Equal(t, WidgetLabel, fields[2].Widget)
}

func TestExtractFieldsNonStruct(t *testing.T) {
	assert.Nil(t, ExtractFields(42))
}

func TestAutoDetect(t *testing.T) {
	type sample struct {
		On   bool
		At   r3.Vec
		Life ptime.Interval
		N    int
	}
	fields := ExtractFields(sample{})
	require.Len(t, fields, 4)
	assert.Equal(t, WidgetBool, fields[0].Widget)
	assert.Equal(t, WidgetVec, fields[1].Widget)
	assert.Equal(t, WidgetInterval, fields[2].Widget)
	assert.Equal(t, WidgetLabel, fields[3].Widget)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "1.50", FormatValue(1.5, ""))
	assert.Equal(t, "(1.00, 2.00, 3.00)", FormatValue(r3.Vec{X: 1, Y: 2, Z: 3}, ""))
	assert.Equal(t, "7", FormatValue(7, ""))
	assert.Equal(t, "0.125", FormatValue(0.125, "%.3f"))
}

func TestFormatInterval(t *testing.T) {
	iv := ptime.Interval{Start: ptime.FromSeconds(1), End: ptime.FromSeconds(2.5)}
	assert.Equal(t, "[1.00s, 2.50s]", FormatInterval(iv))

	open := ptime.Interval{Start: ptime.FromSeconds(2), End: ptime.Forever.End}
	assert.Equal(t, "[2.00s, ∞]", FormatInterval(open))

	assert.Equal(t, "empty", FormatInterval(ptime.Interval{Start: ptime.FromSeconds(3), End: ptime.FromSeconds(1)}))
}

func TestToFloat(t *testing.T) {
	v, ok := toFloat(4)
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)
	v, ok = toFloat(float32(0.5))
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
	_, ok = toFloat("4")
	assert.False(t, ok)
}

func TestExtractFieldsSkipsPromoted(t *testing.T) {
	type inner struct{ Deep int }
	type outer struct {
		inner
		Top bool
	}
	fields := ExtractFields(&outer{Top: true})
	require.Len(t, fields, 1)
	assert.Equal(t, "Top", fields[0].Name)
	assert.Equal(t, true, fields[0].Value)
}

func TestNearest(t *testing.T) {
	world := ecs.NewWorld()
	emitters := ecs.NewMap1[components.Emitter](world)
	a := emitters.NewEntity(&components.Emitter{})
	b := emitters.NewEntity(&components.Emitter{})
	picks := []Pick{{Entity: a, X: 100, Y: 100}, {Entity: b, X: 110, Y: 100}}

	e, ok := Nearest(picks, 108, 100, PickRadius)
	require.True(t, ok)
	assert.Equal(t, b, e)

	_, ok = Nearest(picks, 400, 400, PickRadius)
	assert.False(t, ok)
}
