package game

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// codeAlphabet leaves out characters that are easy to misread (0/O, 1/I/L).
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CodeLength   = 6
)

type codeGenerator struct{}

func NewCodeGenerator() UniqueIdGenerator {
	return codeGenerator{}
}

func (codeGenerator) Generate() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

// ValidCode reports whether code could have come from the code generator.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := range len(code) {
		if strings.IndexByte(codeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

type playerIdGenerator struct{}

// NewPlayerIdGenerator hands out one UUID per connection.
func NewPlayerIdGenerator() UniqueIdGenerator {
	return playerIdGenerator{}
}

func (playerIdGenerator) Generate() string {
	return uuid.NewString()
}

type tickerCreator struct{}

func NewTickerCreator() PeriodicTickerChannelCreator {
	return tickerCreator{}
}

func (tickerCreator) Create(d time.Duration) <-chan time.Time {
	return time.NewTicker(d).C
}
