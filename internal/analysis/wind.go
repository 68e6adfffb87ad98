package analysis

import (
	"fmt"
	"math"

	"github.com/lox/climareport/internal/models"
)

var Cardinals = [16]string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}

// Cardinal maps degrees to one of 16 compass points. Halfway values round up
// and negative angles wrap.
func Cardinal(deg float64) string {
	return Cardinals[cardinalIndex(deg)]
}

func cardinalIndex(deg float64) int {
	idx := int(math.Floor(deg/22.5+0.5)) % 16
	if idx < 0 {
		idx += 16
	}
	return idx
}

type DirectionShare struct {
	Direction string  `json:"direction"`
	Percent   float64 `json:"percent"`
}

// DirectionHistogram returns the share of rows per compass point among rows
// with a defined direction.
func DirectionHistogram(rows []models.ObservationRow) []DirectionShare {
	var counts [16]int
	total := 0
	for _, r := range rows {
		if !r.WindDir.Valid {
			continue
		}
		counts[cardinalIndex(r.WindDir.Float64)]++
		total++
	}
	out := make([]DirectionShare, 16)
	for i, name := range Cardinals {
		out[i] = DirectionShare{Direction: name, Percent: percent(counts[i], total)}
	}
	return out
}

type SpeedBracket struct {
	Min float64
	Max float64
}

func (b SpeedBracket) Contains(v float64) bool {
	return v >= b.Min && v < b.Max
}

func (b SpeedBracket) Label() string {
	if math.IsInf(b.Max, 1) {
		return fmt.Sprintf("[%g,∞) km/h", b.Min)
	}
	return fmt.Sprintf("[%g,%g) km/h", b.Min, b.Max)
}

var SpeedBrackets = []SpeedBracket{{0, 3}, {3, 6}, {6, 9}, {9, math.Inf(1)}}

// WindRose is a direction by speed-bracket matrix of percentages.
type WindRose struct {
	Directions []string      `json:"directions"`
	Brackets   []string      `json:"brackets"`
	Cells      [16][]float64 `json:"cells"`
	Total      int           `json:"total"`
}

// BuildWindRose counts rows with a defined direction and a non-negative
// speed. Each cell is a percentage of those rows.
func BuildWindRose(rows []models.ObservationRow) WindRose {
	var counts [16][]int
	for i := range counts {
		counts[i] = make([]int, len(SpeedBrackets))
	}
	total := 0
	for _, r := range rows {
		if !r.WindDir.Valid || !r.WindAvg.Valid || r.WindAvg.Float64 < 0 {
			continue
		}
		total++
		dir := cardinalIndex(r.WindDir.Float64)
		for b, bracket := range SpeedBrackets {
			if bracket.Contains(r.WindAvg.Float64) {
				counts[dir][b]++
				break
			}
		}
	}

	rose := WindRose{
		Directions: Cardinals[:],
		Brackets:   make([]string, len(SpeedBrackets)),
		Total:      total,
	}
	for b, bracket := range SpeedBrackets {
		rose.Brackets[b] = bracket.Label()
	}
	for d := range counts {
		rose.Cells[d] = make([]float64, len(SpeedBrackets))
		for b := range SpeedBrackets {
			rose.Cells[d][b] = percent(counts[d][b], total)
		}
	}
	return rose
}
