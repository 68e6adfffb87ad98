package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/lox/climareport/internal/metrics"
	"github.com/lox/climareport/internal/models"
)

const (
	EndpointAssets  = "assets"
	EndpointBorders = "field_border"

	CategoryFarm  = "Farm"
	CategoryField = "Field"
)

type Asset struct {
	ID       int64  `json:"id"`
	Parent   *int64 `json:"parent"`
	Category string `json:"category"`
	Label    string `json:"label"`
}

type FieldBorder struct {
	ShapeData   string    `json:"shapeData"`
	CentroidLat FlexFloat `json:"centroid_lat"`
	CentroidLon FlexFloat `json:"centroid_lon"`
}

// FarmIDs returns the farms owned by the grower. A grower that is itself a
// farm and owns none is treated as its own farm.
func FarmIDs(assets []Asset, growerID int64) []int64 {
	var farms []int64
	for _, a := range assets {
		if a.Parent != nil && *a.Parent == growerID && a.Category == CategoryFarm {
			farms = append(farms, a.ID)
		}
	}
	if len(farms) > 0 {
		return farms
	}
	for _, a := range assets {
		if a.ID == growerID && a.Category == CategoryFarm {
			return []int64{growerID}
		}
	}
	return nil
}

// FieldAssets returns the fields whose parent is one of farms, in asset order.
func FieldAssets(assets []Asset, farms []int64) []Asset {
	inFarm := make(map[int64]bool, len(farms))
	for _, id := range farms {
		inFarm[id] = true
	}
	var fields []Asset
	for _, a := range assets {
		if a.Category == CategoryField && a.Parent != nil && inFarm[*a.Parent] {
			fields = append(fields, a)
		}
	}
	return fields
}

// FetchFields resolves the grower's fields and their borders. Fields whose
// border cannot be fetched or parsed are skipped. Only ErrAuth is returned.
func (c *Client) FetchFields(ctx context.Context, growerID int64) ([]models.FieldGeometry, error) {
	log.Printf("borders: fetching fields for grower %d", growerID)

	assetsURL := fmt.Sprintf("%s/asset/?season=%d", c.cfg.BaseURL, c.cfg.Season)
	body, err := c.getWithReauth(ctx, EndpointAssets, "", assetsURL)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			return nil, err
		}
		log.Printf("borders: assets: %v", err)
		return []models.FieldGeometry{}, nil
	}
	var assets []Asset
	if err := json.Unmarshal(body, &assets); err != nil {
		log.Printf("borders: unmarshal assets: %v", err)
		return []models.FieldGeometry{}, nil
	}

	fields := FieldAssets(assets, FarmIDs(assets, growerID))
	out := make([]models.FieldGeometry, 0, len(fields))
	for _, field := range fields {
		geom, err := c.fetchField(ctx, field)
		if err != nil {
			if errors.Is(err, ErrAuth) {
				return nil, err
			}
			log.Printf("borders: field %d: %v", field.ID, err)
			metrics.FieldsSkipped.Inc()
			continue
		}
		if geom != nil {
			out = append(out, *geom)
		}
	}
	log.Printf("borders: found %d fields", len(out))
	return out, nil
}

func (c *Client) fetchField(ctx context.Context, field Asset) (*models.FieldGeometry, error) {
	borderURL := fmt.Sprintf("%s/fieldborder/?assetID=%d&format=json", c.cfg.BaseURL, field.ID)
	body, err := c.getWithReauth(ctx, EndpointBorders, strconv.FormatInt(field.ID, 10), borderURL)
	if err != nil {
		return nil, err
	}
	var borders []FieldBorder
	if err := json.Unmarshal(body, &borders); err != nil {
		return nil, fmt.Errorf("unmarshal border: %w", err)
	}
	if len(borders) == 0 || borders[0].ShapeData == "" {
		return nil, nil
	}
	return BuildFieldGeometry(field, borders[0])
}

// BuildFieldGeometry converts a border record into a map polygon. A border
// with an empty ring yields nil without error.
func BuildFieldGeometry(field Asset, border FieldBorder) (*models.FieldGeometry, error) {
	ring, err := ParseShape(border.ShapeData)
	if err != nil {
		return nil, err
	}
	if len(ring) == 0 {
		return nil, nil
	}
	if !border.CentroidLat.Valid || !border.CentroidLon.Valid {
		return nil, fmt.Errorf("missing centroid")
	}
	name := field.Label
	if name == "" {
		name = fmt.Sprintf("Talhão %d", field.ID)
	}
	return &models.FieldGeometry{
		FieldID:  field.ID,
		Name:     name,
		Centroid: [2]float64{border.CentroidLat.Value, border.CentroidLon.Value},
		Geometry: models.Polygon{Type: "Polygon", Coordinates: [][][2]float64{ring}},
	}, nil
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type shape struct {
	geometry
	Features *[]struct {
		Geometry *geometry `json:"geometry"`
	} `json:"features"`
}

// ParseShape extracts the outer ring of a GeoJSON Polygon or the first
// polygon of a MultiPolygon, as [lat, lon] pairs. FeatureCollections use the
// first feature's geometry.
func ParseShape(shapeData string) ([][2]float64, error) {
	var s shape
	if err := json.Unmarshal([]byte(shapeData), &s); err != nil {
		return nil, fmt.Errorf("parse shape: %w", err)
	}
	geom := s.geometry
	if s.Features != nil {
		if len(*s.Features) == 0 {
			return nil, fmt.Errorf("parse shape: empty feature collection")
		}
		if g := (*s.Features)[0].Geometry; g != nil {
			geom = *g
		}
	}

	if len(geom.Coordinates) == 0 {
		return nil, nil
	}

	var positions [][]float64
	switch geom.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(geom.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("parse polygon: %w", err)
		}
		if len(rings) == 0 {
			return nil, fmt.Errorf("parse polygon: no rings")
		}
		positions = rings[0]
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(geom.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("parse multipolygon: %w", err)
		}
		if len(polys) == 0 || len(polys[0]) == 0 {
			return nil, fmt.Errorf("parse multipolygon: no rings")
		}
		positions = polys[0][0]
	default:
		return nil, nil
	}

	ring := make([][2]float64, 0, len(positions))
	for _, p := range positions {
		if len(p) < 2 {
			return nil, fmt.Errorf("parse shape: short position %v", p)
		}
		ring = append(ring, [2]float64{p[1], p[0]})
	}
	return ring, nil
}
