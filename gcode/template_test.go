package gcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sub(t *testing.T, tmpl, name string, value interface{}) string {
	t.Helper()
	s, err := Substitute(tmpl, name, value)
	require.NoError(t, err)
	return s
}

func TestSubstitute(t *testing.T) {
	tmpl := "G0{X:X%.4f}{Y:Y%.4f}"

	s := sub(t, tmpl, "X", 1.5)
	assert.Equal(t, "G0X1.5000{Y:Y%.4f}", s)

	s = sub(t, s, "Y", nil)
	assert.Equal(t, "G0X1.5000", s)
}

func TestSubstitute_Absent(t *testing.T) {
	for _, tmpl := range []string{
		"M810",
		"G0{X:X%.4f}{Y:Y%.4f}",
		"G4S1\nM400",
		"{Name} {Index}",
	} {
		assert.Equal(t, tmpl, sub(t, tmpl, "FeedRate", 1000.0), tmpl)
		assert.Equal(t, tmpl, sub(t, tmpl, "FeedRate", nil), tmpl)
	}
}

func TestSubstitute_Nil(t *testing.T) {
	assert.Equal(t, "AB", sub(t, "A{X}B", "X", nil))
	assert.Equal(t, "AB", sub(t, "A{X:X%.4f}B", "X", nil))
	assert.Equal(t, "AB", sub(t, "A{X:%s}B", "X", nil))
}

func TestSubstitute_Formats(t *testing.T) {
	assert.Equal(t, "F1000", sub(t, "F{FeedRate:%.0f}", "FeedRate", 1000.0))
	assert.Equal(t, "F1500", sub(t, "F{FeedRate}", "FeedRate", 1500.0))
	assert.Equal(t, "true", sub(t, "{BooleanValue}", "BooleanValue", true))
	assert.Equal(t, "2.5", sub(t, "{DoubleValue:%s}", "DoubleValue", 2.5))
	assert.Equal(t, "vac", sub(t, "{Name:%s}", "Name", "vac"))
	assert.Equal(t, "P07", sub(t, "P{Index:%02d}", "Index", 7))
	assert.Equal(t, "; 100%! on", sub(t, "; {Name}", "Name", "100%! on"))
}

func TestSubstitute_FormatMismatch(t *testing.T) {
	for _, c := range []struct {
		tmpl, name string
		value      interface{}
	}{
		{"M42 P{Index:%.1f}", "Index", 7},
		{"S{BooleanValue:%d}", "BooleanValue", true},
		{"F{FeedRate:%d}", "FeedRate", 1000.0},
		{"{Name:%f}", "Name", "vacuum"},
	} {
		s, err := Substitute(c.tmpl, c.name, c.value)
		assert.True(t, errors.Is(err, ErrBadTemplate), c.tmpl)
		assert.Empty(t, s, c.tmpl)
	}
}

func TestSubstitute_Repeated(t *testing.T) {
	s := sub(t, "{Name}:{Index}:{Name}", "Name", "n1")
	assert.Equal(t, "n1:{Index}:n1", s)
	assert.Equal(t, "n1:2:n1", sub(t, s, "Index", 2))
}

func TestSubstitute_Empty(t *testing.T) {
	assert.Equal(t, "", sub(t, "", "X", 1.0))
}

func TestExpand(t *testing.T) {
	s, err := Expand("M42 P{Index} S{BooleanValue:%v} ; {Name}", Vars{
		"Name":         "vacuum",
		"Index":        7,
		"BooleanValue": false,
	})
	require.NoError(t, err)
	assert.Equal(t, "M42 P7 Sfalse ; vacuum", s)

	_, err = Expand("M42 P{Index:%.1f} S{BooleanValue:%d}", Vars{"Index": 7, "BooleanValue": true})
	assert.True(t, errors.Is(err, ErrBadTemplate))
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders("G0{X:X%.4f}{Y:Y%.4f}{Z:Z%.4f}{Rotation:E%.4f}F{FeedRate:%.0f}\nM400 {X}")
	assert.Equal(t, []string{"X", "Y", "Z", "Rotation", "FeedRate"}, names)
	assert.Nil(t, Placeholders("M84"))
}

func TestValidateTemplate(t *testing.T) {
	assert.NoError(t, ValidateTemplate("G0{X:X%.4f}{Y:Y%.4f}{Z:Z%.4f}{Rotation:E%.4f}F{FeedRate:%.0f}\nM400"))
	assert.NoError(t, ValidateTemplate("M42 P{Index} S{BooleanValue}"))
	assert.NoError(t, ValidateTemplate("{X:100%% %d}"))

	for _, tmpl := range []string{
		"{X:X}",
		"{X:%.4f%.4f}",
		"{X:%y}",
		"{X:%.4}",
	} {
		err := ValidateTemplate(tmpl)
		assert.Error(t, err, tmpl)
		assert.True(t, errors.Is(err, ErrBadTemplate), tmpl)
	}
}
