package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{ClientID: "client-id", Secret: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestBaseURLFor(t *testing.T) {
	tests := []struct {
		env     string
		want    string
		wantErr bool
	}{
		{"", sandboxURL, false},
		{"sandbox", sandboxURL, false},
		{"development", developmentURL, false},
		{"production", productionURL, false},
		{"staging", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			got, err := BaseURLFor(tt.env)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownEnvironment)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SendsCredentialsInHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, exchangePath, r.URL.Path)
		assert.Equal(t, "client-id", r.Header.Get("PLAID-CLIENT-ID"))
		assert.Equal(t, "secret", r.Header.Get("PLAID-SECRET"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body := decodeBody(t, r)
		assert.Equal(t, "public-sandbox-123", body["public_token"])

		w.Write([]byte(`{"access_token":"access-sandbox-abc","item_id":"item-1","request_id":"req"}`))
	})

	resp, err := client.ExchangePublicToken(context.Background(), "public-sandbox-123")
	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-abc", resp.AccessToken)
	assert.Equal(t, "item-1", resp.ItemID)
}

func TestClient_ExchangeWithoutAccessToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"item_id":"item-1"}`))
	})

	_, err := client.ExchangePublicToken(context.Background(), "public")
	assert.Error(t, err)
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_type":"ITEM_ERROR","error_code":"ITEM_LOGIN_REQUIRED","error_message":"the login details of this item have changed","request_id":"r1"}`))
	})

	_, err := client.GetAccounts(context.Background(), "access")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "ITEM_ERROR", apiErr.ErrorType)
	assert.True(t, IsItemLoginRequired(err))
}

func TestClient_NonJSONError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream unavailable`))
	})

	_, err := client.GetItem(context.Background(), "access")
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "502")
}

func TestClient_GetInstitutionRequestsMetadata(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "ins_109508", body["institution_id"])
		assert.Equal(t, []any{"US"}, body["country_codes"])
		assert.Equal(t, map[string]any{"include_optional_metadata": true}, body["options"])

		w.Write([]byte(`{"institution":{"institution_id":"ins_109508","name":"First Platypus Bank","logo":"iVBORw0KGgo="}}`))
	})

	resp, err := client.GetInstitution(context.Background(), "ins_109508")
	require.NoError(t, err)
	assert.Equal(t, "First Platypus Bank", resp.Institution.Name)
	assert.Equal(t, "iVBORw0KGgo=", resp.Institution.GetLogo())
}

func TestClient_GetBalancesFiltersAccounts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, map[string]any{"account_ids": []any{"acc-ext-1"}}, body["options"])

		w.Write([]byte(`{"accounts":[{"account_id":"acc-ext-1","name":"Plaid Credit Card","type":"credit","subtype":"credit card","mask":"3333",
			"balances":{"current":410.25,"available":null,"limit":2000,"iso_currency_code":"USD"}}]}`))
	})

	resp, err := client.GetBalances(context.Background(), "access", []string{"acc-ext-1"})
	require.NoError(t, err)
	require.Len(t, resp.Accounts, 1)

	b := resp.Accounts[0].Balances
	assert.True(t, decimal.RequireFromString("410.25").Equal(b.GetCurrent()))
	assert.True(t, b.GetAvailable().IsZero())
	assert.True(t, b.GetLimit().Valid)
	assert.Equal(t, "3333", resp.Accounts[0].GetMask())
	assert.Equal(t, "credit card", resp.Accounts[0].GetSubtype())
}

func TestClient_GetBalancesWithoutFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		_, hasOptions := body["options"]
		assert.False(t, hasOptions)
		w.Write([]byte(`{"accounts":[]}`))
	})

	_, err := client.GetBalances(context.Background(), "access", nil)
	require.NoError(t, err)
}

func TestClient_SyncTransactions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, syncPath, r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "cursor-1", body["cursor"])
		assert.Equal(t, float64(500), body["count"])
		assert.Equal(t, map[string]any{"include_original_description": true, "account_id": "acc-ext-1"}, body["options"])

		w.Write([]byte(`{
			"added":[{"transaction_id":"tx-1","account_id":"acc-ext-1","amount":12.5,"date":"2024-03-02",
				"name":"Coffee","merchant_name":"Blue Bottle","category":["Food and Drink","Coffee"],
				"personal_finance_category":{"primary":"FOOD_AND_DRINK","detailed":"FOOD_AND_DRINK_COFFEE"},"pending":false}],
			"modified":[],
			"removed":[{"transaction_id":"tx-0","account_id":"acc-ext-1"}],
			"next_cursor":"cursor-2","has_more":true}`))
	})

	resp, err := client.SyncTransactions(context.Background(), SyncRequest{
		AccessToken: "access",
		Cursor:      "cursor-1",
		Count:       500,
		AccountID:   "acc-ext-1",
	})
	require.NoError(t, err)

	assert.True(t, resp.HasMore)
	assert.Equal(t, "cursor-2", resp.NextCursor)
	require.Len(t, resp.Added, 1)
	require.Len(t, resp.Removed, 1)

	added := resp.Added[0]
	assert.Equal(t, "FOOD_AND_DRINK", added.GetCategory())
	assert.Equal(t, "Blue Bottle", added.GetMerchantName())
	date, err := added.GetDate()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", date.Format(dateLayout))
}

func TestClient_SyncWithoutCursorOmitsIt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		_, hasCursor := body["cursor"]
		assert.False(t, hasCursor)
		w.Write([]byte(`{"added":[],"modified":[],"removed":[],"next_cursor":"c","has_more":false}`))
	})

	_, err := client.SyncTransactions(context.Background(), SyncRequest{AccessToken: "access", Count: 500})
	require.NoError(t, err)
}

func TestTransaction_GetCategoryFallsBackToLegacy(t *testing.T) {
	tx := Transaction{Category: []string{"Travel", "Airlines"}}
	assert.Equal(t, "Travel", tx.GetCategory())

	assert.Equal(t, "", Transaction{}.GetCategory())
}

func TestTransaction_GetAuthorizedDate(t *testing.T) {
	empty := ""
	got, err := Transaction{AuthorizedDate: &empty}.GetAuthorizedDate()
	require.NoError(t, err)
	assert.Nil(t, got)

	bad := "03/02/2024"
	_, err = Transaction{AuthorizedDate: &bad}.GetAuthorizedDate()
	assert.Error(t, err)
}
