package htmlutil

import "testing"

func TestToText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acumulado de <strong>51,0 mm</strong> no dia.", "Acumulado de 51,0 mm no dia."},
		{"<b>Estação: A</b><br>Chuva: 10 mm", "Estação: A Chuva: 10 mm"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := ToText(tt.in); got != tt.want {
			t.Errorf("ToText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
