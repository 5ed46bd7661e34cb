// Package game implements the Snake mini-game launched from QR codes: the
// board rules, the score multiplier, the countdown and tick timers and the
// one-time points award.
package game

// GridSize is the width and height of the square board.
const GridSize = 18

// Point is a board cell or a unit direction vector.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Directions.
var (
	Up    = Point{X: 0, Y: -1}
	Down  = Point{X: 0, Y: 1}
	Left  = Point{X: -1, Y: 0}
	Right = Point{X: 1, Y: 0}
)

func (p Point) add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) reverse() Point { return Point{X: -p.X, Y: -p.Y} }

func (p Point) inBounds() bool {
	return p.X >= 0 && p.X < GridSize && p.Y >= 0 && p.Y < GridSize
}

// Status is the lifecycle phase of a session.
type Status string

const (
	StatusReady     Status = "ready"
	StatusCountdown Status = "countdown"
	StatusRunning   Status = "running"
	StatusOver      Status = "over"
)

// Rand picks food positions. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Outcome is the result of a single movement step.
type Outcome int

const (
	Moved Outcome = iota
	Ate
	HitWall
	HitSelf
	// BoardFull means the snake ate and no free cell is left for food.
	BoardFull
)

// Ended reports whether the outcome terminates the game.
func (o Outcome) Ended() bool {
	return o == HitWall || o == HitSelf || o == BoardFull
}

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case Ate:
		return "ate"
	case HitWall:
		return "hit-wall"
	case HitSelf:
		return "hit-self"
	case BoardFull:
		return "board-full"
	default:
		return "unknown"
	}
}

// State is the board of one session. The snake is stored head first.
type State struct {
	BasePoints int     `json:"base_points"`
	Score      int     `json:"score"`
	Snake      []Point `json:"snake"`
	Dir        Point   `json:"direction"`
	Food       Point   `json:"food"`
	Status     Status  `json:"status"`
	Awarded    bool    `json:"awarded"`
}

// NewState returns the starting board: a three cell snake heading right and
// food on a free cell.
func NewState(basePoints int, rnd Rand) State {
	s := State{
		BasePoints: max(0, basePoints),
		Snake:      []Point{{X: 7, Y: 9}, {X: 6, Y: 9}, {X: 5, Y: 9}},
		Dir:        Right,
		Status:     StatusReady,
	}
	s.Food, _ = spawnFood(s.Snake, rnd)
	return s
}

// Step moves the head one cell in dir. Leaving the grid or touching any body
// segment ends the game without moving. Eating grows the snake by keeping the
// tail and places new food.
func (s *State) Step(dir Point, rnd Rand) Outcome {
	s.Dir = dir
	next := s.Snake[0].add(dir)

	if !next.inBounds() {
		return HitWall
	}
	for _, c := range s.Snake {
		if c == next {
			return HitSelf
		}
	}

	s.Snake = append([]Point{next}, s.Snake...)
	if next != s.Food {
		s.Snake = s.Snake[:len(s.Snake)-1]
		return Moved
	}

	s.Score++
	food, ok := spawnFood(s.Snake, rnd)
	if !ok {
		return BoardFull
	}
	s.Food = food
	return Ate
}

// spawnFood picks a cell uniformly among those not in occupied, scanning in
// row-major order. It reports false when every cell is occupied.
func spawnFood(occupied []Point, rnd Rand) (Point, bool) {
	taken := make(map[Point]bool, len(occupied))
	for _, c := range occupied {
		taken[c] = true
	}
	free := make([]Point, 0, GridSize*GridSize-len(taken))
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			if p := (Point{X: x, Y: y}); !taken[p] {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return Point{X: -1, Y: -1}, false
	}
	return free[rnd.IntN(len(free))], true
}
