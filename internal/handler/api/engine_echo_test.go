package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ValueFlow/internal/domain/models"
	"ValueFlow/internal/engine/registry"
	"ValueFlow/internal/usecase"
	xhttp "ValueFlow/pkg/http"
	applogger "ValueFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*EngineHandler, *echo.Echo) {
	t.Helper()
	settings := usecase.EngineSettings{
		BaseSymbol:    "USD",
		MinConfidence: 0.5,
		MinValue:      0.0001,
		MaxValue:      1e9,
	}
	proc := usecase.NewWindowProcessor(settings, registry.New(), nil, nil, nil, applogger.Nop())
	h := NewEngineHandler(applogger.Nop(), proc, nil, nil, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func doRequest(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) xhttp.APIResponse {
	t.Helper()
	var env xhttp.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestDeactivateItem(t *testing.T) {
	h, e := newTestHandler(t)
	h.proc.Registry().Ensure("GOLD", models.CategoryCommodity)

	env := decodeEnvelope(t, doRequest(e, http.MethodDelete, "/api/items/GOLD"))
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want 200", env.Status)
	}

	it, ok := h.proc.Registry().Lookup("GOLD")
	if !ok {
		t.Fatal("item must survive deactivation")
	}
	if it.Active {
		t.Fatal("item still active after deactivation")
	}
}

func TestDeactivateItemUnknownSymbol(t *testing.T) {
	_, e := newTestHandler(t)

	env := decodeEnvelope(t, doRequest(e, http.MethodDelete, "/api/items/NOPE"))
	if env.Status != http.StatusNotFound {
		t.Fatalf("envelope status = %d, want 404", env.Status)
	}
}
