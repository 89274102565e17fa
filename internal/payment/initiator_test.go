package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namthanhstores/storefront-backend/pkg/config"
)

func TestHTTPInitiatorPostsCreatePaymentBody(t *testing.T) {
	t.Parallel()

	var (
		got         map[string]any
		method      string
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order_url":"https://gateway/pay/abc","app_trans_id":"260301_abc"}`))
	}))
	t.Cleanup(srv.Close)

	initiator, err := NewHTTPInitiator(config.PaymentConfig{CreateURL: srv.URL}, srv.Client(), nil)
	require.NoError(t, err)

	res, err := initiator.Initiate(context.Background(), InitiateRequest{
		Amount:  260000,
		Items:   []Item{{ID: "p1", Name: "Áo", Price: 125000, ItemCount: 2, Image: "img"}},
		Name:    "Lan",
		Phone:   "0912345678",
		Address: "1 Lê Lợi, Bến Nghé, Quận 1, Hồ Chí Minh",
		UserID:  "u1",
		Email:   "lan@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "260301_abc", res.TransactionID)
	require.Equal(t, "https://gateway/pay/abc", res.RedirectURL)

	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "application/json", contentType)
	require.EqualValues(t, 260000, got["amount"])
	require.Equal(t, "u1", got["userid"])
	require.Equal(t, DefaultNote, got["note"])
	items := got["items"].([]any)
	require.Len(t, items, 1)
	require.EqualValues(t, 2, items[0].(map[string]any)["itemCount"])
}

func TestHTTPInitiatorFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"gateway error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"missing order url", http.StatusOK, `{"app_trans_id":"x"}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			initiator, err := NewHTTPInitiator(config.PaymentConfig{CreateURL: srv.URL}, srv.Client(), nil)
			require.NoError(t, err)
			_, err = initiator.Initiate(context.Background(), InitiateRequest{Amount: 1, UserID: "u1"})
			require.Error(t, err)
		})
	}
}

func TestNewHTTPInitiatorRequiresURL(t *testing.T) {
	t.Parallel()
	_, err := NewHTTPInitiator(config.PaymentConfig{CreateURL: "  "}, nil, nil)
	require.Error(t, err)
}
