// import_units carga inventario heredado (CSV o XLSX) como recepciones en el registro de unidades.
//
// Uso: go run ./cmd/import_units [-encoding iso-8859-1] [-sheet Hoja1] [-by usuario] [-skip-existing] [-dry-run] archivo.csv|archivo.xlsx
// La conexión a PostgreSQL se toma de la misma configuración que la API (.env / variables de entorno).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/importer"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-seriales/pkg/config"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

func main() {
	encoding := flag.String("encoding", string(importer.UTF8), "codificación del CSV: utf-8 o iso-8859-1")
	sheet := flag.String("sheet", "", "hoja del XLSX (por defecto la primera)")
	by := flag.String("by", "import", "operador registrado en el libro mayor")
	skipExisting := flag.Bool("skip-existing", false, "omitir seriales ya registrados en lugar de rechazar el lote")
	dryRun := flag.Bool("dry-run", false, "solo validar el archivo")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Uso: import_units [opciones] archivo.csv|archivo.xlsx")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir archivo: %v\n", err)
		os.Exit(1)
	}
	var (
		rows    []importer.Row
		invalid []importer.RowError
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, invalid, err = importer.ReadXLSX(f, *sheet)
	} else {
		rows, invalid, err = importer.ReadCSV(f, importer.Encoding(strings.ToLower(*encoding)))
	}
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer %s: %v\n", path, err)
		os.Exit(1)
	}
	for _, e := range invalid {
		fmt.Fprintf(os.Stderr, "Fila omitida, %v\n", e)
	}
	batches := importer.Batches(rows, *by)
	fmt.Printf("%d filas válidas, %d inválidas, %d lotes\n", len(rows), len(invalid), len(batches))
	if *dryRun {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel}).Component("import_units")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conectar a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Esquema: %v\n", err)
		os.Exit(1)
	}

	repos := postgres.NewRepos(pool)
	engine := inventory.NewEngine(postgres.NewTxRunner(pool), lock.NewKeyedMutex(), nil, log, inventory.EngineOptions{})
	units := inventory.NewUnitService(engine, repos, postgres.NewCatalog(pool), log)

	imported, failed := 0, 0
	for i, in := range batches {
		if *skipExisting {
			in.SerialNumbers, err = newSerials(ctx, repos, in.SerialNumbers)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Consultar seriales: %v\n", err)
				os.Exit(1)
			}
			if len(in.SerialNumbers) == 0 {
				continue
			}
		}
		created, err := units.Receive(ctx, in)
		if err != nil {
			failed += len(in.SerialNumbers)
			fmt.Fprintf(os.Stderr, "Lote %d (%s en %s): %v\n", i+1, in.ProductID, in.LocationID, err)
			continue
		}
		imported += len(created)
	}
	fmt.Printf("Importadas %d unidades, %d rechazadas\n", imported, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func newSerials(ctx context.Context, repos inventory.Repos, serials []string) ([]string, error) {
	out := serials[:0:0]
	for _, s := range serials {
		u, err := repos.Units.GetBySerial(ctx, s)
		if err != nil {
			return nil, err
		}
		if u == nil {
			out = append(out, s)
		}
	}
	return out, nil
}
