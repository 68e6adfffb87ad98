package ingest

var weekdays = map[string]string{
	"Monday":    "Seg",
	"Tuesday":   "Ter",
	"Wednesday": "Qua",
	"Thursday":  "Qui",
	"Friday":    "Sex",
	"Saturday":  "Sáb",
	"Sunday":    "Dom",
}

var phrases = map[string]string{
	"Sunny":                   "Ensolarado",
	"Mostly Sunny":            "Predominantemente Ensolarado",
	"Partly Cloudy":           "Parcialmente Nublado",
	"Partly Sunny":            "Parcialmente Ensolarado",
	"Mostly Cloudy":           "Predominantemente Nublado",
	"Cloudy":                  "Nublado",
	"Showers":                 "Pancadas de Chuva",
	"Rain":                    "Chuva",
	"Thunderstorms":           "Trovoadas",
	"Scattered Thunderstorms": "Trovoadas Esparsas",
	"Isolated Thunderstorms":  "Trovoadas Isoladas",
	"PM Thunderstorms":        "Trovoadas à Tarde",
	"AM Showers":              "Pancadas de Chuva pela Manhã",
	"PM Showers":              "Pancadas de Chuva à Tarde",
	"Light Rain":              "Chuva Leve",
	"Clear":                   "Céu Limpo",
	"Hazy":                    "Neblina Seca",
	"Fog":                     "Nevoeiro",
	"Mix of sun and clouds":   "Sol e Nuvens",
	"Few Showers":             "Poucas Pancadas",
}

// TranslateWeekday maps an English weekday name to its short pt-BR label.
// Unknown names pass through unchanged.
func TranslateWeekday(s string) string {
	if t, ok := weekdays[s]; ok {
		return t
	}
	return s
}

// TranslatePhrase maps a forecast phrase to pt-BR. Unknown phrases pass through.
func TranslatePhrase(s string) string {
	if t, ok := phrases[s]; ok {
		return t
	}
	return s
}
