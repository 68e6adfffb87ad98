package analysis

import (
	"database/sql"
	"math"
)

// stat accumulates defined values. Missing values are ignored and an empty
// accumulator reports nil for every statistic.
type stat struct {
	sum float64
	n   int
	min float64
	max float64
}

func (s *stat) add(v sql.NullFloat64) {
	if v.Valid {
		s.addValue(v.Float64)
	}
}

func (s *stat) addPtr(v *float64) {
	if v != nil {
		s.addValue(*v)
	}
}

func (s *stat) addValue(v float64) {
	if math.IsNaN(v) {
		return
	}
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.n++
}

func (s stat) mean() *float64 {
	if s.n == 0 {
		return nil
	}
	return ptr(s.sum / float64(s.n))
}

func (s stat) minimum() *float64 {
	if s.n == 0 {
		return nil
	}
	return ptr(s.min)
}

func (s stat) maximum() *float64 {
	if s.n == 0 {
		return nil
	}
	return ptr(s.max)
}

func ptr(v float64) *float64 {
	return &v
}

func nullOf(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func ptrOf(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return ptr(v.Float64)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
