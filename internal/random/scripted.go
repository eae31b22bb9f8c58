package random

// Scripted повторяет последнее значение, когда список исчерпан.
type Scripted struct {
	values []float64
	pos    int
	last   float64
	count  uint64
}

func NewScripted(values ...float64) *Scripted {
	return &Scripted{values: values, last: 0.5}
}

func (s *Scripted) Float64() float64 {
	if s.pos < len(s.values) {
		s.last = s.values[s.pos]
		s.pos++
	}
	return s.last
}

func (s *Scripted) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *Scripted) Uint64() uint64 {
	s.count++
	return s.count * 0x9e3779b97f4a7c15
}
