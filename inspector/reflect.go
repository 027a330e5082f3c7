package inspector

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/ptime"
)

// Widget types for rendering fields.
type Widget int

const (
	WidgetAuto Widget = iota
	WidgetLabel
	WidgetBar
	WidgetBool
	WidgetVec
	WidgetInterval
	WidgetSkip
)

var widgetNames = map[string]Widget{
	"label":    WidgetLabel,
	"bar":      WidgetBar,
	"bool":     WidgetBool,
	"vec":      WidgetVec,
	"interval": WidgetInterval,
	"skip":     WidgetSkip,
}

// Hints are the options of an inspect tag.
type Hints struct {
	Max    float64 // bar full scale, default 1
	Format string  // fmt verb for labels
}

// Field is one inspectable component field.
type Field struct {
	Name   string
	Value  any
	Widget Widget
	Hints  Hints
}

// ParseTag parses `inspect:"widget[,max:N][,fmt:VERB]"`, for example
// `inspect:"bar,max:10"` or `inspect:"label,fmt:%.3f"`. Unknown widgets
// and options are ignored.
func ParseTag(tag string) (Widget, Hints) {
	h := Hints{Max: 1}
	name, rest, _ := strings.Cut(tag, ",")
	w := widgetNames[strings.TrimSpace(name)]
	for opt := range strings.SplitSeq(rest, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(opt), ":")
		if !ok {
			continue
		}
		switch k {
		case "max":
			if m, err := strconv.ParseFloat(v, 64); err == nil && m > 0 {
				h.Max = m
			}
		case "fmt":
			h.Format = v
		}
	}
	return w, h
}

var (
	vecType      = reflect.TypeOf(r3.Vec{})
	intervalType = reflect.TypeOf(ptime.Interval{})
)

// ExtractFields lists the exported fields of a struct (or pointer to one)
// with the widget each is drawn with.
func ExtractFields(component any) []Field {
	v := reflect.Indirect(reflect.ValueOf(component))
	if v.Kind() != reflect.Struct {
		return nil
	}
	var fields []Field
	for _, sf := range reflect.VisibleFields(v.Type()) {
		if !sf.IsExported() || len(sf.Index) > 1 {
			continue
		}
		w, h := ParseTag(sf.Tag.Get("inspect"))
		if w == WidgetSkip {
			continue
		}
		fv := v.FieldByIndex(sf.Index)
		if w == WidgetAuto {
			switch {
			case fv.Type() == vecType:
				w = WidgetVec
			case fv.Type() == intervalType:
				w = WidgetInterval
			case fv.Kind() == reflect.Bool:
				w = WidgetBool
			default:
				w = WidgetLabel
			}
		}
		fields = append(fields, Field{Name: sf.Name, Value: fv.Interface(), Widget: w, Hints: h})
	}
	return fields
}

// FormatValue renders value with verb, or with two decimals for floats and
// vectors when verb is empty.
func FormatValue(value any, verb string) string {
	if verb != "" {
		return fmt.Sprintf(verb, value)
	}
	switch v := value.(type) {
	case float32, float64:
		return fmt.Sprintf("%.2f", v)
	case r3.Vec:
		return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
	case ptime.Interval:
		return FormatInterval(v)
	}
	return fmt.Sprint(value)
}

// FormatInterval renders an interval in seconds. An open end prints as "∞".
func FormatInterval(iv ptime.Interval) string {
	if iv.End.Less(iv.Start) {
		return "empty"
	}
	end := "∞"
	if !iv.End.Equal(ptime.Forever.End) {
		end = fmt.Sprintf("%.2fs", iv.End.Seconds())
	}
	return fmt.Sprintf("[%.2fs, %s]", iv.Start.Seconds(), end)
}

// toFloat converts numeric field values for bars.
func toFloat(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch {
	case v.CanFloat():
		return v.Float(), true
	case v.CanInt():
		return float64(v.Int()), true
	}
	return 0, false
}
