// Package importer lee inventario heredado (CSV o XLSX) y lo agrupa en recepciones.
//
// Columnas esperadas (encabezado obligatorio, sin importar mayúsculas ni orden):
// serial_number, product_id, warehouse_id, unit_cost y opcionalmente reference_number.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// MaxBatch unidades por recepción.
const MaxBatch = 1000

// Encoding codificación del CSV de entrada.
type Encoding string

const (
	UTF8   Encoding = "utf-8"
	Latin1 Encoding = "iso-8859-1"
)

// Row fila de inventario heredado.
type Row struct {
	Line            int
	SerialNumber    string
	ProductID       string
	WarehouseID     string
	UnitCost        decimal.Decimal
	ReferenceNumber string
}

// RowError fila rechazada al leer.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("línea %d: %v", e.Line, e.Err) }

var required = []string{"serial_number", "product_id", "warehouse_id", "unit_cost"}

// ReadCSV lee un CSV separado por coma o punto y coma. Las filas inválidas se devuelven
// aparte; un encabezado incompleto es error.
func ReadCSV(r io.Reader, enc Encoding) ([]Row, []RowError, error) {
	if enc == Latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	br := bufio.NewReader(r)
	// BOM de Excel
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, nil, fmt.Errorf("leer encabezado: %w", err)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if header, _, _ := bytes.Cut(first, []byte("\n")); bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		cr.Comma = ';'
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("leer csv: %w", err)
	}
	return parseRecords(records)
}

// ReadXLSX lee la hoja indicada (la primera si sheet está vacío).
func ReadXLSX(r io.Reader, sheet string) ([]Row, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("abrir xlsx: %w", err)
	}
	defer f.Close()
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("leer hoja %q: %w", sheet, err)
	}
	return parseRecords(records)
}

func parseRecords(records [][]string) ([]Row, []RowError, error) {
	if len(records) == 0 {
		return nil, nil, errors.New("archivo vacío")
	}
	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("falta la columna %s", name)
		}
	}
	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		rows    []Row
		invalid []RowError
	)
	for n, rec := range records[1:] {
		line := n + 2
		if isBlank(rec) {
			continue
		}
		row := Row{
			Line:            line,
			SerialNumber:    get(rec, "serial_number"),
			ProductID:       get(rec, "product_id"),
			WarehouseID:     get(rec, "warehouse_id"),
			ReferenceNumber: get(rec, "reference_number"),
		}
		if row.SerialNumber == "" || row.ProductID == "" || row.WarehouseID == "" {
			invalid = append(invalid, RowError{Line: line, Err: errors.New("serial, producto y bodega son obligatorios")})
			continue
		}
		cost, err := parseCost(get(rec, "unit_cost"))
		if err != nil {
			invalid = append(invalid, RowError{Line: line, Err: err})
			continue
		}
		row.UnitCost = cost
		rows = append(rows, row)
	}
	return rows, invalid, nil
}

// parseCost acepta "1500", "1500.50" y "1.500,50".
func parseCost(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("costo %q inválido", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("costo %q negativo", s)
	}
	return d, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Batches agrupa las filas en recepciones por producto, bodega, costo y referencia,
// conservando el orden del archivo y con a lo sumo MaxBatch seriales cada una.
func Batches(rows []Row, performedBy string) []inventory.ReceiveInput {
	type key struct{ product, warehouse, cost, ref string }
	index := map[key]int{}
	var out []inventory.ReceiveInput
	for _, r := range rows {
		k := key{r.ProductID, r.WarehouseID, r.UnitCost.String(), r.ReferenceNumber}
		i, ok := index[k]
		if !ok || len(out[i].SerialNumbers) >= MaxBatch {
			out = append(out, inventory.ReceiveInput{
				ProductID:       r.ProductID,
				LocationID:      r.WarehouseID,
				UnitCost:        r.UnitCost,
				ReferenceType:   entity.ReferenceTypeAdjustment,
				ReferenceNumber: r.ReferenceNumber,
				Notes:           "importación de inventario heredado",
				PerformedBy:     performedBy,
			})
			i = len(out) - 1
			index[k] = i
		}
		out[i].SerialNumbers = append(out[i].SerialNumbers, r.SerialNumber)
	}
	return out
}
