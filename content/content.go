// Package content supplies the words, passages, puzzles and dictionary
// lookups the games consume.
package content

import "context"

// Word categories known to every WordSource.
const (
	CategoryCodenames = "codenames"
	CategoryDrawing   = "drawing"
	CategoryWordle    = "wordle"
	CategoryWordChain = "wordchain"
	CategoryTyping    = "typing"
)

type WordSource interface {
	// RandomWords returns n distinct entries of category, fewer if the
	// category is smaller.
	RandomWords(ctx context.Context, category string, n int) ([]string, error)
}

type Dictionary interface {
	// Valid reports whether word is a real word. Lookups that cannot be
	// answered count as valid.
	Valid(ctx context.Context, word string) bool
}

type PuzzleGenerator interface {
	Generate(difficulty string) (Puzzle, error)
}

// Puzzle is a 9x9 Sudoku in row-major order. Zero marks an empty cell.
type Puzzle struct {
	Givens     [81]int `json:"givens"`
	Solution   [81]int `json:"solution"`
	Difficulty string  `json:"difficulty"`
	// Rating counts the cells a solver has to guess at because no cell is
	// left with a single candidate. Zero means singles solve it.
	Rating int `json:"rating"`
}

// OpenDictionary accepts every word. It stands in when no dictionary service
// is configured.
type OpenDictionary struct{}

func (OpenDictionary) Valid(context.Context, string) bool {
	return true
}
