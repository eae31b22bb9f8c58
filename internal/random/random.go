package random

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

type Source interface {
	Float64() float64
	IntN(n int) int
	Uint64() uint64
}

func New(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func Uniform(r Source, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func Chance(r Source, p float64) bool {
	return r.Float64() < p
}

func Duration(r Source, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Float64()*float64(hi-lo))
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

const hexDigits = "0123456789abcdef"
const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

func Hex(r Source, n int) string {
	return pick(r, hexDigits, n)
}

func Base36(r Source, n int) string {
	return pick(r, base36Digits, n)
}

func pick(r Source, alphabet string, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[r.Uint64()%uint64(len(alphabet))]
	}
	return string(out)
}

func UUID(r Source) uuid.UUID {
	id, err := uuid.NewRandomFromReader(reader{r: r})
	if err != nil {
		return uuid.New()
	}
	return id
}

type reader struct {
	r Source
}

func (rd reader) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		v := rd.r.Uint64()
		for j := 0; j < 8 && i+j < len(p); j++ {
			p[i+j] = byte(v >> (8 * j))
		}
	}
	return len(p), nil
}
