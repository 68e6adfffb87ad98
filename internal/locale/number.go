// Package locale formats report values the way pt-BR readers expect.
package locale

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Missing is shown in place of an undefined value.
const Missing = "N/D"

var (
	printerOnce sync.Once
	printer     *message.Printer
)

func p() *message.Printer {
	printerOnce.Do(func() {
		printer = message.NewPrinter(language.BrazilianPortuguese)
	})
	return printer
}

// Number formats v with a fixed number of decimals, e.g. 1234.5 → "1.234,5".
func Number(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return p().Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

// NumberPtr is Number for optional values.
func NumberPtr(v *float64, decimals int) string {
	if v == nil {
		return Missing
	}
	return Number(*v, decimals)
}

var months = [12]string{"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho", "Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro"}

// MonthName returns the pt-BR month name.
func MonthName(m time.Month) string {
	return months[m-1]
}

// MonthLabel formats a YYYY-MM key as "Março de 2024". Unparseable keys are returned unchanged.
func MonthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("%s de %d", MonthName(t.Month()), t.Year())
}

// Date formats t as dd/mm/yyyy.
func Date(t time.Time) string {
	return t.Format("02/01/2006")
}
