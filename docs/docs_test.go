package docs_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"

	"github.com/jhoicas/inventario-seriales/docs"
)

func TestSwaggerRegistered(t *testing.T) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var spec struct {
		Paths map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &spec), "la especificación debe ser JSON válido")
	assert.Contains(t, spec.Paths, "/api/sales/withdraw")
	assert.Contains(t, spec.Paths["/api/reservations/{id}"], "delete")
}
