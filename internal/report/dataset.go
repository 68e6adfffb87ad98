package report

import (
	"database/sql"
	"encoding/json"
	"io"
	"math"

	"github.com/lox/climareport/internal/models"
)

// DataFile is the name of the split-format dataset the page fetches at load.
const DataFile = "dados_climaticos.json"

// isoLayout matches the timestamp format the page's Date parser expects.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Columns is the column order of the dataset.
var Columns = []string{
	"datetime",
	"precipitacao_mm",
	"temp_media_c",
	"temp_min_c",
	"temp_max_c",
	"umidade_media_perc",
	"umidade_min_perc",
	"umidade_max_perc",
	"vento_medio_kph",
	"rajada_max_kph",
	"vento_direcao_graus",
	"delta_t",
	"gfdi",
	"radiacao_solar",
	"nome_estacao",
	"station_id",
}

// Dataset is the cleaned row set in column/row split form.
type Dataset struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// NewDataset projects rows into the split form. Floats are rounded to one
// decimal and missing values become null.
func NewDataset(rows []models.ObservationRow) Dataset {
	ds := Dataset{Columns: Columns, Data: make([][]any, 0, len(rows))}
	for _, r := range rows {
		ds.Data = append(ds.Data, []any{
			r.ObservedAt.UTC().Format(isoLayout),
			round1(r.Precip),
			round1(r.TempAvg),
			round1(r.TempMin),
			round1(r.TempMax),
			round1(r.HumidityAvg),
			round1(r.HumidityMin),
			round1(r.HumidityMax),
			round1(r.WindAvg),
			round1(r.WindGust),
			round1(r.WindDir),
			round1(r.DeltaT),
			round1(r.GFDI),
			round1(r.SolarRadiation),
			r.StationName,
			r.StationID,
		})
	}
	return ds
}

func round1(v sql.NullFloat64) *float64 {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return nil
	}
	r := math.Round(v.Float64*10) / 10
	return &r
}

// WriteDataset encodes rows as the split-format dataset.
func WriteDataset(w io.Writer, rows []models.ObservationRow) error {
	return json.NewEncoder(w).Encode(NewDataset(rows))
}
