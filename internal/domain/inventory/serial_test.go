package inventory_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/inventario-seriales/internal/domain/inventory"
)

func TestNormalizeSerial(t *testing.T) {
	cases := map[string]string{
		"  sn001 ":  "SN001",
		"ＳＮ００２": "SN002", // ancho completo desde lector de código de barras
		"abc-ñ-9":   "ABC-Ñ-9",
		"":          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, inventory.NormalizeSerial(in), "entrada %q", in)
	}
}

func TestGenerateSerial(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	sn := inventory.GenerateSerial("tv-55", now)
	assert.Regexp(t, regexp.MustCompile(`^TV-55-261017-[0-9A-F]{8}$`), sn)
	assert.NotEqual(t, sn, inventory.GenerateSerial("tv-55", now), "dos seriales generados no deben repetirse")
}

func TestGenerateClaimNumber(t *testing.T) {
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Regexp(t, regexp.MustCompile(`^CLM-20260105-[0-9A-F]{8}$`), inventory.GenerateClaimNumber(now))
}

func TestCostCalculator(t *testing.T) {
	// 10 unidades a 100 + 10 a 200 => 150
	got := inventory.CostCalculator(decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.NewFromInt(10), decimal.NewFromInt(200))
	assert.True(t, got.Equal(decimal.NewFromInt(150)), "costo promedio ponderado, obtenido %s", got)
	assert.True(t, inventory.CostCalculator(decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero).IsZero())
}

func TestAverageUnitCost(t *testing.T) {
	assert.True(t, inventory.AverageUnitCost(3, decimal.NewFromInt(100)).Equal(decimal.RequireFromString("33.33")))
	assert.True(t, inventory.AverageUnitCost(0, decimal.NewFromInt(100)).IsZero())
}
