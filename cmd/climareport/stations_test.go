package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadStationsDefault(t *testing.T) {
	stations, err := loadStations("")
	if err != nil {
		t.Fatal(err)
	}
	if len(stations) != 8 || stations[0].StationID != "80977" {
		t.Errorf("unexpected default stations %+v", stations)
	}
}

func TestLoadStationsFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"valid", `[{"id_estacao":"1","name":"Sede","latitude":-12.5,"longitude":-55.7}]`, 1, false},
		{"empty list", `[]`, 0, true},
		{"missing id", `[{"name":"Sede"}]`, 0, true},
		{"duplicate name", `[{"id_estacao":"1","name":"Sede"},{"id_estacao":"2","name":"Sede"}]`, 0, true},
		{"not json", `estações`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stations.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			stations, err := loadStations(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(stations) != tt.want {
				t.Errorf("len = %d, want %d", len(stations), tt.want)
			}
		})
	}
}
