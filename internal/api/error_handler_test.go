package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

func TestHTTPErrorHandler_MapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{fmt.Errorf("%w: price must be positive", domain.ErrValidation), http.StatusBadRequest, "validation"},
		{fmt.Errorf("get auction x: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: dealer account is not verified", domain.ErrAuthorization), http.StatusForbidden, "authorization"},
		{fmt.Errorf("%w: auction ended", domain.ErrAuctionClosed), http.StatusConflict, "auction_closed"},
		{domain.ErrConflict, http.StatusConflict, "conflict"},
		{fmt.Errorf("%w: auction has bids", domain.ErrState), http.StatusConflict, "state"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "credentials"},
		{domain.ErrUserExists, http.StatusConflict, "conflict"},
		{echo.NewHTTPError(http.StatusUnauthorized, "invalid token"), http.StatusUnauthorized, "authentication"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	h := NewHTTPErrorHandler(zerolog.Nop())
	for _, tc := range cases {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		h(tc.err, c)

		if rec.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body.Kind != tc.kind {
			t.Fatalf("%v: expected kind %q, got %q", tc.err, tc.kind, body.Kind)
		}
		if tc.kind == "internal" && body.Error != "internal server error" {
			t.Fatalf("internal error leaked: %q", body.Error)
		}
	}
}
