package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSerial normaliza un número de serie antes de buscarlo o guardarlo:
// recorta espacios, aplica NFKC (los lectores de código de barras a veces envían
// dígitos de ancho completo) y pasa a mayúsculas.
func NormalizeSerial(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	// cases.Caser no es seguro entre goroutines; se crea por llamada.
	return cases.Upper(language.Und).String(s)
}

// GenerateSerial genera un serial para unidades recibidas sin serial de fábrica:
// <SKU>-<AAMMDD>-<8 hex>.
func GenerateSerial(sku string, now time.Time) string {
	prefix := NormalizeSerial(sku)
	if prefix == "" {
		prefix = "SN"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("060102"), shortID())
}

// GenerateClaimNumber genera el número visible de un reclamo: CLM-AAAAMMDD-XXXXXXXX.
func GenerateClaimNumber(now time.Time) string {
	return fmt.Sprintf("CLM-%s-%s", now.Format("20060102"), shortID())
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
