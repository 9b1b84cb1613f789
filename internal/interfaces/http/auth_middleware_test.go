package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/inventario-seriales/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/inventario-seriales/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret  = "test-secret-key-for-unit-tests"
	testOperatorID = "op-0001"
	testIssuer     = "inventario-seriales-test"
)

// tokenFor genera un JWT para el operador indicado con el prefijo Bearer.
func tokenFor(t *testing.T, op pkgjwt.Operator) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, op, testIssuer, time.Hour)
	require.NoError(t, err, "debe generarse un token JWT válido")
	return "Bearer " + tok
}

func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	return tokenFor(t, pkgjwt.Operator{ID: testOperatorID, Role: role})
}

// guardedApp expone GET /protected detrás de AuthMiddleware y RequireRole.
func guardedApp(allowedRoles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret),
		apphttp.RequireRole(allowedRoles...),
		func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"user_id":      apphttp.GetUserID(c),
				"role":         apphttp.GetRole(c),
				"warehouse_id": apphttp.GetWarehouseID(c),
			})
		},
	)
	return app
}

func get(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var e struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Code
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_CargaOperador(t *testing.T) {
	app := guardedApp(apphttp.RoleBodeguero)
	resp := get(t, app, tokenFor(t, pkgjwt.Operator{ID: "bod-7", Role: apphttp.RoleBodeguero, WarehouseID: "W2"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "bod-7", body["user_id"], "el operador del token queda como performed_by")
	assert.Equal(t, apphttp.RoleBodeguero, body["role"])
	assert.Equal(t, "W2", body["warehouse_id"])
}

func TestAuthMiddleware_Rechazos(t *testing.T) {
	app := guardedApp(apphttp.RoleAdmin)
	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"sin header", "", "MISSING_TOKEN"},
		{"sin esquema Bearer", "Token abc", "INVALID_TOKEN"},
		{"token vacío", "Bearer   ", "MISSING_TOKEN"},
		{"token malformado", "Bearer token.invalido.aqui", "INVALID_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := get(t, app, tc.header)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.code, errorCode(t, resp))
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RequireRole
// ──────────────────────────────────────────────────────────────────────────────

func TestRequireRole_PermiteRolesListados(t *testing.T) {
	app := guardedApp(apphttp.RoleAdmin, apphttp.RoleBodeguero)
	for _, role := range []string{apphttp.RoleAdmin, apphttp.RoleBodeguero} {
		resp := get(t, app, tokenForRole(t, role))
		assert.Equal(t, http.StatusOK, resp.StatusCode, "%s debe tener acceso", role)
	}
}

func TestRequireRole_VendedorBloqueado(t *testing.T) {
	app := guardedApp(apphttp.RoleAdmin, apphttp.RoleBodeguero)
	resp := get(t, app, tokenForRole(t, apphttp.RoleVendedor))

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
}

func TestRequireRole_TokenSinRol(t *testing.T) {
	app := guardedApp(apphttp.RoleAdmin)
	resp := get(t, app, tokenForRole(t, ""))

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_ROLE", errorCode(t, resp))
}

// ──────────────────────────────────────────────────────────────────────────────
// pkg/jwt
// ──────────────────────────────────────────────────────────────────────────────

func TestJWT_GenerateParse(t *testing.T) {
	op := pkgjwt.Operator{ID: "bod-7", Role: apphttp.RoleBodeguero, WarehouseID: "W1"}
	tok, err := pkgjwt.Generate(testJWTSecret, op, testIssuer, time.Minute)
	require.NoError(t, err)

	got, err := pkgjwt.Parse(testJWTSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, op, got)
}

func TestJWT_Errores(t *testing.T) {
	valid, err := pkgjwt.Generate(testJWTSecret, pkgjwt.Operator{ID: testOperatorID, Role: "admin"}, testIssuer, time.Minute)
	require.NoError(t, err)
	expired, err := pkgjwt.Generate(testJWTSecret, pkgjwt.Operator{ID: testOperatorID, Role: "admin"}, testIssuer, -time.Minute)
	require.NoError(t, err)

	_, err = pkgjwt.Parse(testJWTSecret, expired)
	assert.Error(t, err, "token expirado")

	_, err = pkgjwt.Parse("otro-secret-completamente-distinto", valid)
	assert.Error(t, err, "secret incorrecto")

	_, err = pkgjwt.Generate(testJWTSecret, pkgjwt.Operator{Role: "admin"}, testIssuer, time.Minute)
	assert.Error(t, err, "operador sin id")

	_, err = pkgjwt.Generate("", pkgjwt.Operator{ID: testOperatorID}, testIssuer, time.Minute)
	assert.Error(t, err, "secret vacío")
}
