package multiplier

import (
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

// Source sorteia o multiplicador de uma rodada
type Source interface {
	Draw() decimal.Decimal
}

// Uniform sorteia com distribuição uniforme em [Min, Max], com 2 casas decimais
type Uniform struct {
	mu       sync.Mutex
	rng      *rand.Rand
	min, max int64 // em centésimos
}

// NewUniform cria a fonte; rng nil usa uma semente aleatória
func NewUniform(min, max decimal.Decimal, rng *rand.Rand) *Uniform {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	lo := min.Shift(2).Ceil().IntPart()
	hi := max.Shift(2).Floor().IntPart()
	if hi < lo {
		hi = lo
	}
	return &Uniform{rng: rng, min: lo, max: hi}
}

func (u *Uniform) Draw() decimal.Decimal {
	u.mu.Lock()
	n := u.min + u.rng.Int64N(u.max-u.min+1)
	u.mu.Unlock()
	return decimal.New(n, -2)
}

// Sequence devolve valores fixos em ordem, repetindo o último (testes e replays)
type Sequence struct {
	mu     sync.Mutex
	values []decimal.Decimal
	next   int
}

func NewSequence(values ...string) *Sequence {
	s := &Sequence{}
	for _, v := range values {
		s.values = append(s.values, decimal.RequireFromString(v))
	}
	return s
}

func (s *Sequence) Draw() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return v
}
