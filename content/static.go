package content

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"fmt"
	"math/rand/v2"
	"path"
	"slices"
	"strings"
	"sync"

	"partyrooms/domain"
)

//go:embed words/*.txt
var wordFiles embed.FS

// StaticWords serves the word lists compiled into the binary.
type StaticWords struct {
	lists map[string][]string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewStaticWords(rng *rand.Rand) (*StaticWords, error) {
	entries, err := wordFiles.ReadDir("words")
	if err != nil {
		return nil, err
	}
	lists := make(map[string][]string, len(entries))
	for _, e := range entries {
		data, err := wordFiles.ReadFile(path.Join("words", e.Name()))
		if err != nil {
			return nil, err
		}
		category := strings.TrimSuffix(e.Name(), ".txt")
		lists[category] = readLines(data)
	}
	return &StaticWords{lists: lists, rng: rng}, nil
}

func readLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (s *StaticWords) RandomWords(_ context.Context, category string, n int) ([]string, error) {
	list, ok := s.lists[category]
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w: category %q", domain.ErrNoContent, category)
	}
	n = min(n, len(list))

	s.mu.Lock()
	idx := s.rng.Perm(len(list))[:n]
	s.mu.Unlock()

	out := make([]string, n)
	for i, j := range idx {
		out[i] = list[j]
	}
	return out, nil
}

// Contains reports whether word is in category, ignoring case.
func (s *StaticWords) Contains(category, word string) bool {
	for _, w := range s.lists[category] {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

// Categories lists the embedded categories in sorted order.
func (s *StaticWords) Categories() []string {
	names := make([]string, 0, len(s.lists))
	for name := range s.lists {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List returns a copy of every entry in category.
func (s *StaticWords) List(category string) []string {
	return slices.Clone(s.lists[category])
}
