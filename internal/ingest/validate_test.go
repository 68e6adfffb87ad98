package ingest

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/lox/climareport/internal/models"
)

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

var (
	insideRegion  = models.Station{StationID: "1", Name: "Inside", Latitude: -12.47, Longitude: -55.68}
	outsideRegion = models.Station{StationID: "2", Name: "Outside", Latitude: -25.0, Longitude: -49.0}
)

func fullRow() models.ObservationRow {
	return models.ObservationRow{
		TempAvg: nf(25), TempMin: nf(22), TempMax: nf(28),
		HumidityAvg: nf(60), HumidityMin: nf(50), HumidityMax: nf(70),
		WindAvg: nf(5), WindGust: nf(12), DeltaT: nf(4), GFDI: nf(3),
	}
}

func TestValidatorRuleOrder(t *testing.T) {
	v := NewValidator(MatoGrosso)
	want := []string{RuleTemperature, RuleHumidity, RuleWind, RuleRegionCold}
	if got := v.Rules(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rules() = %v, want %v", got, want)
	}
}

func TestValidatorRules(t *testing.T) {
	tests := []struct {
		name    string
		station models.Station
		mutate  func(r *models.ObservationRow)
		rule    string
		kept    bool
		check   func(t *testing.T, r models.ObservationRow)
	}{
		{
			name:    "clean row untouched",
			station: insideRegion,
			mutate:  func(r *models.ObservationRow) {},
			kept:    true,
			check: func(t *testing.T, r models.ObservationRow) {
				if !reflect.DeepEqual(r, fullRow()) {
					t.Errorf("row changed: %+v", r)
				}
			},
		},
		{
			name:    "temperature above 50 is dropped",
			station: outsideRegion,
			mutate:  func(r *models.ObservationRow) { r.TempAvg = nf(51) },
			rule:    RuleTemperature,
		},
		{
			name:    "temperature of exactly 50 is kept",
			station: outsideRegion,
			mutate:  func(r *models.ObservationRow) { r.TempAvg = nf(50) },
			kept:    true,
		},
		{
			name:    "temperature sentinel 0",
			station: outsideRegion,
			mutate:  func(r *models.ObservationRow) { r.TempAvg = nf(0) },
			rule:    RuleTemperature,
		},
		{
			name:    "temperature sentinel 1",
			station: outsideRegion,
			mutate:  func(r *models.ObservationRow) { r.TempAvg = nf(1) },
			rule:    RuleTemperature,
		},
		{
			name:    "zero minimum humidity clears humidity group",
			station: outsideRegion,
			mutate:  func(r *models.ObservationRow) { r.HumidityMin = nf(0) },
			rule:    RuleHumidity,
		},
		{
			name:    "unlikely gust clears wind only",
			station: outsideRegion,
			mutate:  func(r *models.ObservationRow) { r.WindGust = nf(151) },
			rule:    RuleWind,
			kept:    true,
			check: func(t *testing.T, r models.ObservationRow) {
				if r.WindAvg.Valid || r.WindGust.Valid {
					t.Error("expected wind group cleared")
				}
				if !r.TempAvg.Valid || !r.DeltaT.Valid {
					t.Error("expected other groups kept")
				}
			},
		},
		{
			name:    "cold reading inside region",
			station: insideRegion,
			mutate:  func(r *models.ObservationRow) { r.TempAvg = nf(9.9) },
			rule:    RuleRegionCold,
		},
		{
			name:    "cold reading outside region is kept",
			station: outsideRegion,
			mutate:  func(r *models.ObservationRow) { r.TempAvg = nf(9.9) },
			kept:    true,
		},
		{
			name:    "missing humidity is dropped without a rule",
			station: outsideRegion,
			mutate:  func(r *models.ObservationRow) { r.HumidityAvg = sql.NullFloat64{} },
		},
	}

	v := NewValidator(MatoGrosso)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := fullRow()
			tt.mutate(&row)
			kept, stats := v.Validate(tt.station, []models.ObservationRow{row})

			if tt.rule != "" && stats.Nulled[tt.rule] != 1 {
				t.Errorf("rule %s count = %d, want 1 (%v)", tt.rule, stats.Nulled[tt.rule], stats.Nulled)
			}
			if tt.rule == "" && len(stats.Nulled) != 0 {
				t.Errorf("unexpected rule hits %v", stats.Nulled)
			}
			if tt.kept != (len(kept) == 1) {
				t.Fatalf("kept = %d, want kept=%v", len(kept), tt.kept)
			}
			if !tt.kept && stats.Dropped != 1 {
				t.Errorf("Dropped = %d, want 1", stats.Dropped)
			}
			if tt.check != nil && len(kept) == 1 {
				tt.check(t, kept[0])
			}
		})
	}
}

func TestValidatorRulesSeeEarlierEffects(t *testing.T) {
	v := NewValidator(MatoGrosso)
	row := fullRow()
	// Sentinel 1 clears temperature first, so the region rule has nothing to match.
	row.TempAvg = nf(1)
	_, stats := v.Validate(insideRegion, []models.ObservationRow{row})
	if stats.Nulled[RuleTemperature] != 1 || stats.Nulled[RuleRegionCold] != 0 {
		t.Errorf("unexpected rule counts %v", stats.Nulled)
	}
}

func TestRegionContainsIsInclusive(t *testing.T) {
	if !MatoGrosso.Contains(-18.2, -61.8) || !MatoGrosso.Contains(-7.5, -50.0) {
		t.Error("expected corners to be inside")
	}
	if MatoGrosso.Contains(-18.21, -55) {
		t.Error("expected point south of the box to be outside")
	}
}

func TestSortRowsIsStable(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.ObservationRow{
		{ObservedAt: base.Add(time.Hour), StationName: "A"},
		{ObservedAt: base, StationName: "A"},
		{ObservedAt: base.Add(time.Hour), StationName: "B"},
		{ObservedAt: base, StationName: "B"},
	}
	SortRows(rows)
	got := []string{rows[0].StationName, rows[1].StationName, rows[2].StationName, rows[3].StationName}
	if !reflect.DeepEqual(got, []string{"A", "B", "A", "B"}) {
		t.Errorf("order = %v, want A B A B", got)
	}
	if !rows[0].ObservedAt.Equal(base) {
		t.Error("expected earliest row first")
	}
}
