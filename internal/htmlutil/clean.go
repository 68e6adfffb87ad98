package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText strips markup from an alert or popup fragment and collapses the
// result onto a single line.
func ToText(s string) string {
	return strings.Join(strings.Fields(html2text.HTML2Text(s)), " ")
}
