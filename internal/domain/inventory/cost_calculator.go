package inventory

import "github.com/shopspring/decimal"

// CostCalculator implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((CantActual * CostoActual) + (CantEntrada * CostoEntrada)) / (CantActual + CantEntrada)
// Se usa para combinar el costo promedio de unidades disponibles entre bodegas.
func CostCalculator(cantActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	sum := cantActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	num := cantActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return num.Div(sum)
}

// AverageUnitCost costo promedio de n unidades cuyo costo total es total.
func AverageUnitCost(n int, total decimal.Decimal) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(2)
}
