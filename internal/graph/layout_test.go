package graph

import (
	"math"
	"testing"
)

func TestHostPositionGridWraps(t *testing.T) {
	cases := []struct {
		index int
		x, y  float64
	}{
		{0, 300, 400},
		{1, 900, 400},
		{3, 2100, 400},
		{4, 300, 900},
		{9, 900, 1400},
	}
	for _, tc := range cases {
		x, y := hostPosition(tc.index)
		if x != tc.x || y != tc.y {
			t.Fatalf("hostPosition(%d) = (%v, %v), want (%v, %v)", tc.index, x, y, tc.x, tc.y)
		}
	}
}

func TestCirclePositionStartsAtTwelveOClock(t *testing.T) {
	x, y := circlePosition(300, 400, 0, 4)
	if math.Abs(x-300) > 1e-9 || math.Abs(y-(400-subNodeRadius)) > 1e-9 {
		t.Fatalf("first sub-node not above center: (%v, %v)", x, y)
	}

	// Quarter turn later the node sits to the right of center.
	x, y = circlePosition(300, 400, 1, 4)
	if math.Abs(x-(300+subNodeRadius)) > 1e-9 || math.Abs(y-400) > 1e-9 {
		t.Fatalf("second of four sub-nodes not right of center: (%v, %v)", x, y)
	}
}

func TestIOCGridWrapsRows(t *testing.T) {
	grid := newIOCGrid()

	x, y := grid.next()
	if x != 100 || y != 100 {
		t.Fatalf("first cell = (%v, %v)", x, y)
	}

	var lastX, lastY float64 = x, y
	for i := 0; i < 16; i++ {
		lastX, lastY = grid.next()
	}
	if lastY == 100 {
		t.Fatalf("expected grid to wrap to a new row after exceeding the max width")
	}
	if lastX > iocGridMaxX+iocGridStepX {
		t.Fatalf("x ran past the wrap point: %v", lastX)
	}
}
