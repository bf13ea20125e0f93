package graph

import "math"

// Layout constants mirror the coordinates the platform's graph view was
// designed around; changing them only moves nodes, never changes graph
// structure.
const (
	hostGridOriginX = 300
	hostGridOriginY = 400
	hostGridCols    = 4
	hostGridStepX   = 600
	hostGridStepY   = 500

	subNodeRadius = 180

	iocGridOriginX = 100
	iocGridOriginY = 100
	iocGridStepX   = 150
	iocGridMaxX    = 1200
	iocGridStepY   = 120
)

// hostPosition places the i-th host on a fixed 4-column grid.
func hostPosition(index int) (float64, float64) {
	x := float64(hostGridOriginX + (index%hostGridCols)*hostGridStepX)
	y := float64(hostGridOriginY + (index/hostGridCols)*hostGridStepY)
	return x, y
}

// circlePosition places the idx-th of total sub-nodes on a circle around
// (cx, cy), starting at twelve o'clock.
func circlePosition(cx, cy float64, idx, total int) (float64, float64) {
	if total < 1 {
		total = 1
	}
	angle := (float64(idx)/float64(total))*2*math.Pi - math.Pi/2
	return cx + subNodeRadius*math.Cos(angle), cy + subNodeRadius*math.Sin(angle)
}

// iocGrid hands out wrapping grid positions for network IOC nodes.
type iocGrid struct {
	x, y float64
}

func newIOCGrid() *iocGrid {
	return &iocGrid{x: iocGridOriginX, y: iocGridOriginY}
}

func (g *iocGrid) next() (float64, float64) {
	x, y := g.x, g.y
	g.x += iocGridStepX
	if g.x > iocGridMaxX {
		g.x = iocGridOriginX
		g.y += iocGridStepY
	}
	return x, y
}
