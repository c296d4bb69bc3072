package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint_Add(t *testing.T) {
	a := Point{X: 1, Y: 2, Z: 3}
	b := Point{X: 4, Y: 5, Z: 6}

	assert.Equal(t, Point{X: 5, Y: 7, Z: 9}, a.Add(b))
}

func TestPoint_Sub(t *testing.T) {
	a := Point{X: 5, Y: 7, Z: 9}
	b := Point{X: 4, Y: 5, Z: 6}

	assert.Equal(t, Point{X: 1, Y: 2, Z: 3}, a.Sub(b))
	assert.True(t, a.Sub(b).Add(b).Equal(a))
}

func TestPoint_Mul(t *testing.T) {
	assert.Equal(t, Point{X: 2.54, Y: 5.08, Z: 0}, Point{X: 1, Y: 2}.Mul(2.54))
}
