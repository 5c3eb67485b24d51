package env

import "strings"

// FeatureCount is the length of the vector produced by Features.
const FeatureCount = 15

var directions = []Action{ActionUp, ActionRight, ActionDown, ActionLeft}

// Features flattens a paclite observation into a fixed-length vector for
// learned policies: player position, pellet fraction, and per-direction
// blocked / ghost-proximity / pellet-proximity signals. All values are in
// [0, 1].
func Features(obs Observation) []float64 {
	walls := layoutWalls()
	height := len(walls)
	width := len(walls[0])

	total := 0
	for _, row := range obs.Pellets {
		for _, has := range row {
			if has {
				total++
			}
		}
	}

	out := make([]float64, 0, FeatureCount)
	out = append(out,
		float64(obs.Pac.X)/float64(width-1),
		float64(obs.Pac.Y)/float64(height-1),
		pelletFraction(obs.PelletsLeft, total),
	)

	maxDist := float64(width + height)
	for _, dir := range directions {
		to := shift(obs.Pac, dir)
		blocked := 0.0
		if to.Y < 0 || to.Y >= height || to.X < 0 || to.X >= width || walls[to.Y][to.X] {
			blocked = 1.0
			to = obs.Pac
		}
		ghost := nearestGhostDistance(obs, to)
		pellet := nearestPelletDistance(walls, obs.Pellets, to)
		out = append(out,
			blocked,
			1.0-clamp01(float64(ghost)/maxDist),
			1.0-clamp01(float64(pellet)/maxDist),
		)
	}
	return out
}

// NearestPelletAction returns the legal move that shortens the walk to the
// closest pellet, or ActionNoop when no pellet is reachable.
func NearestPelletAction(obs Observation) Action {
	walls := layoutWalls()
	best := ActionNoop
	bestDist := -1
	for _, a := range obs.Legal {
		if a == ActionNoop {
			continue
		}
		to := shift(obs.Pac, a)
		d := nearestPelletDistance(walls, obs.Pellets, to)
		if d < 0 {
			continue
		}
		if obs.Pellets[to.Y][to.X] {
			d = 0
		}
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = a
		}
	}
	return best
}

// PelletDistance is the BFS walk distance from a cell to the closest
// remaining pellet, honoring walls; -1 when none is reachable.
func PelletDistance(obs Observation, from Point) int {
	return nearestPelletDistance(layoutWalls(), obs.Pellets, from)
}

// CellAfter applies an action to a cell without moving anything.
func CellAfter(p Point, a Action) Point {
	return shift(p, a)
}

// GhostAdjacent reports whether a ghost occupies or borders the given cell.
func GhostAdjacent(obs Observation, at Point) bool {
	for _, g := range obs.Ghosts {
		if abs(g.Pos.X-at.X)+abs(g.Pos.Y-at.Y) <= 1 {
			return true
		}
	}
	return false
}

func pelletFraction(left, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(left) / float64(total)
}

func nearestGhostDistance(obs Observation, from Point) int {
	best := -1
	for _, g := range obs.Ghosts {
		d := abs(g.Pos.X-from.X) + abs(g.Pos.Y-from.Y)
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 1 << 16
	}
	return best
}

// nearestPelletDistance is a BFS walk distance honoring walls; -1 when no
// pellet is reachable.
func nearestPelletDistance(walls [][]bool, pellets [][]bool, from Point) int {
	height := len(walls)
	width := len(walls[0])
	if from.Y < 0 || from.Y >= height || from.X < 0 || from.X >= width || walls[from.Y][from.X] {
		return -1
	}
	if pellets[from.Y][from.X] {
		return 0
	}

	visited := make([]bool, width*height)
	type cell struct {
		p Point
		d int
	}
	queue := []cell{{p: from}}
	visited[from.Y*width+from.X] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dir := range directions {
			to := shift(cur.p, dir)
			if to.Y < 0 || to.Y >= height || to.X < 0 || to.X >= width || walls[to.Y][to.X] {
				continue
			}
			idx := to.Y*width + to.X
			if visited[idx] {
				continue
			}
			if pellets[to.Y][to.X] {
				return cur.d + 1
			}
			visited[idx] = true
			queue = append(queue, cell{p: to, d: cur.d + 1})
		}
	}
	return -1
}

func shift(p Point, a Action) Point {
	switch a {
	case ActionUp:
		p.Y--
	case ActionDown:
		p.Y++
	case ActionLeft:
		p.X--
	case ActionRight:
		p.X++
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var cachedWalls [][]bool

func layoutWalls() [][]bool {
	if cachedWalls != nil {
		return cachedWalls
	}
	lines := strings.Split(pacliteLayout, "\n")
	walls := make([][]bool, len(lines))
	for y, line := range lines {
		walls[y] = make([]bool, len(line))
		for x := 0; x < len(line); x++ {
			walls[y][x] = line[x] == '#'
		}
	}
	cachedWalls = walls
	return walls
}
