package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lox/climareport/internal/models"
)

var defaultStations = []models.Station{
	{StationID: "80977", Name: "Santa Ernestina T05", Latitude: -12.4756, Longitude: -55.6867},
	{StationID: "80985", Name: "Santa Ernestina T07", Latitude: -12.4168, Longitude: -55.7401},
	{StationID: "80986", Name: "Santa Ernestina T04", Latitude: -12.4778, Longitude: -55.7003},
	{StationID: "80984", Name: "Santa Ernestina T12", Latitude: -12.4005, Longitude: -55.7182},
	{StationID: "39266", Name: "Santa Ernestina", Latitude: -12.4048, Longitude: -55.740738},
	{StationID: "37191", Name: "Santa Ernestina T03", Latitude: -12.496, Longitude: -55.6931},
	{StationID: "59504", Name: "Santa Ernestina T13", Latitude: -12.3868, Longitude: -55.7189},
	{StationID: "65610", Name: "Santa Ernestina T11", Latitude: -12.4196, Longitude: -55.7304},
}

// loadStations reads a JSON list of stations, or returns the built-in list
// when path is empty.
func loadStations(path string) ([]models.Station, error) {
	if path == "" {
		return defaultStations, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations: %w", err)
	}
	var stations []models.Station
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("parse stations %s: %w", path, err)
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("stations file %s lists no stations", path)
	}
	seen := make(map[string]bool, len(stations))
	for _, st := range stations {
		if st.StationID == "" || st.Name == "" {
			return nil, fmt.Errorf("stations file %s: every station needs id_estacao and name", path)
		}
		if seen[st.Name] {
			return nil, fmt.Errorf("stations file %s: duplicate station name %q", path, st.Name)
		}
		seen[st.Name] = true
	}
	return stations, nil
}
