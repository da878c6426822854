package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"traders-server/internal/auth"
	"traders-server/internal/middleware"
)

func asShip(r *http.Request, shipID int) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ShipContextKey, &auth.Claims{ShipID: shipID})
	return r.WithContext(ctx)
}

type fakeCombat struct {
	Combatant
}

func TestPathIDValidation(t *testing.T) {
	h := NewCombatHandler(fakeCombat{})
	req := asShip(httptest.NewRequest(http.MethodPost, "/api/combat/ships/abc", nil), 1)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	h.AttackShip(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
