package content

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"sync"
)

// Difficulties accepted by SudokuGenerator.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

var holesByDifficulty = map[string]int{
	DifficultyEasy:   36,
	DifficultyMedium: 46,
	DifficultyHard:   54,
}

// SudokuGenerator builds puzzles with exactly one solution. Hard puzzles may
// end up with a few more givens than asked when no further cell can be
// cleared without a second solution appearing.
type SudokuGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSudokuGenerator(rng *rand.Rand) *SudokuGenerator {
	return &SudokuGenerator{rng: rng}
}

func (g *SudokuGenerator) Generate(difficulty string) (Puzzle, error) {
	holes, ok := holesByDifficulty[difficulty]
	if !ok {
		return Puzzle{}, fmt.Errorf("unknown difficulty %q", difficulty)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var p Puzzle
	var b board
	b.fill(g.rng)
	p.Solution = b.cells

	removed := 0
	for _, i := range g.rng.Perm(81) {
		if removed == holes {
			break
		}
		v := b.cells[i]
		b.cells[i] = 0
		if b.countSolutions(2) != 1 {
			b.cells[i] = v
			continue
		}
		removed++
	}
	p.Givens = b.cells
	p.Difficulty = difficulty
	p.Rating = Rate(p.Givens, p.Solution)
	return p, nil
}

// Rate walks the puzzle towards solution, always filling the most
// constrained cell, and counts the steps where that cell still had more than
// one candidate.
func Rate(givens, solution [81]int) int {
	b := board{cells: givens}
	rating := 0
	for {
		i, cand := b.mostConstrained()
		if i < 0 {
			return rating
		}
		if bits.OnesCount16(cand) > 1 {
			rating++
		}
		b.cells[i] = solution[i]
	}
}

type board struct {
	cells [81]int
}

func (b *board) candidates(i int) uint16 {
	row, col := i/9, i%9
	var used uint16
	for k := range 9 {
		used |= 1 << b.cells[row*9+k]
		used |= 1 << b.cells[k*9+col]
	}
	br, bc := row/3*3, col/3*3
	for r := br; r < br+3; r++ {
		for c := bc; c < bc+3; c++ {
			used |= 1 << b.cells[r*9+c]
		}
	}
	return ^used & 0b1111111110
}

func (b *board) fill(rng *rand.Rand) bool {
	i := b.firstEmpty()
	if i < 0 {
		return true
	}
	cand := b.candidates(i)
	for _, d := range rng.Perm(9) {
		v := d + 1
		if cand&(1<<v) == 0 {
			continue
		}
		b.cells[i] = v
		if b.fill(rng) {
			return true
		}
	}
	b.cells[i] = 0
	return false
}

// countSolutions stops counting at limit.
func (b *board) countSolutions(limit int) int {
	i, cand := b.mostConstrained()
	if i < 0 {
		return 1
	}
	count := 0
	for v := 1; v <= 9 && count < limit; v++ {
		if cand&(1<<v) == 0 {
			continue
		}
		b.cells[i] = v
		count += b.countSolutions(limit - count)
	}
	b.cells[i] = 0
	return count
}

// mostConstrained picks the empty cell with the fewest candidates.
func (b *board) mostConstrained() (int, uint16) {
	best, bestCand, bestN := -1, uint16(0), 10
	for i, v := range b.cells {
		if v != 0 {
			continue
		}
		cand := b.candidates(i)
		n := bits.OnesCount16(cand)
		if n < bestN {
			best, bestCand, bestN = i, cand, n
			if n <= 1 {
				break
			}
		}
	}
	return best, bestCand
}

func (b *board) firstEmpty() int {
	for i, v := range b.cells {
		if v == 0 {
			return i
		}
	}
	return -1
}

// ValidSolution reports whether cells is a complete, rule-abiding grid.
func ValidSolution(cells [81]int) bool {
	for i, v := range cells {
		if v < 1 || v > 9 {
			return false
		}
		b := board{cells: cells}
		b.cells[i] = 0
		if b.candidates(i)&(1<<v) == 0 {
			return false
		}
	}
	return true
}
