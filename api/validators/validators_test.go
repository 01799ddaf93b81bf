package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
)

type lineBody struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"money"`
}

type saleBody struct {
	Items []lineBody `json:"items" validate:"required,min=1,dive"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest saleBody
	err := DecodeJSONBody(post(`{"items":[{"product_id":"`+uuid.NewString()+`","quantity":2,"unit_price":"12.50"}]}`), &dest)
	require.NoError(t, err)
	assert.True(t, dest.Items[0].UnitPrice.Equal(decimal.RequireFromString("12.5")))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	var dest saleBody
	err := DecodeJSONBody(post(`{"items":[{"product_id":"00000000-0000-0000-0000-000000000000","quantity":0,"unit_price":"1.005"}]}`), &dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Equal(t, "is required", details["items[0].product_id"])
	assert.Contains(t, details, "items[0].quantity")
	assert.Contains(t, details, "items[0].unit_price")
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dest saleBody
	err := DecodeJSONBody(post(`{"items":[],"extra":true}`), &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryUUID(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/?product_id="+id.String()+"&bad=nope", nil)

	got, err := ParseQueryUUID(r, "product_id", true)
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	missing, err := ParseQueryUUID(r, "branch_id", false)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseQueryUUID(r, "branch_id", true)
	assert.Error(t, err)
	_, err = ParseQueryUUID(r, "bad", false)
	assert.Error(t, err)
}

func TestURLParamUUID(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/orders/"+id.String(), nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", id.String())
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))

	got, err := URLParamUUID(r, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = URLParamUUID(r, "branchId")
	assert.Error(t, err)
}

func TestParseQueryIntBounds(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err := ParseQueryInt(r, "limit", 50, 1, 200)
	assert.Error(t, err)

	got, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, got)
}
