package smsactivate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(action string, query map[string]string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := map[string]string{}
		for key := range r.URL.Query() {
			query[key] = r.URL.Query().Get(key)
		}
		require.Equal(t, "test-key", query["api_key"])
		fmt.Fprint(w, handler(query["action"], query))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetStatusParsesCode(t *testing.T) {
	srv := newTestServer(t, func(action string, query map[string]string) string {
		require.Equal(t, "getStatus", action)
		require.Equal(t, "42", query["id"])
		return "STATUS_OK:123456"
	})
	cli := NewClient(srv.URL, "test-key")

	status, code, err := cli.GetStatus(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	require.Equal(t, "123456", code)
}

func TestCallMapsTextErrors(t *testing.T) {
	srv := newTestServer(t, func(action string, query map[string]string) string {
		return "NO_NUMBERS"
	})
	cli := NewClient(srv.URL, "test-key")

	_, err := cli.GetNumber(context.Background(), "tg", 0)
	require.ErrorIs(t, err, ErrNoNumbers)
}

func TestGetRentStatusKeepsArrivalOrder(t *testing.T) {
	// values 用对象下标做键，条数超过 10 时字典序会把 "10" 排到 "2" 前面，
	// 必须按数字序还原
	values := map[string]RentSms{}
	for i := 0; i < 12; i++ {
		values[fmt.Sprintf("%d", i)] = RentSms{
			Phone: "79001112233",
			Text:  fmt.Sprintf("msg-%d", i),
			Date:  fmt.Sprintf("2026-08-28 10:%02d:00", i),
		}
	}
	srv := newTestServer(t, func(action string, query map[string]string) string {
		require.Equal(t, "getRentStatus", action)
		body, err := json.Marshal(map[string]any{
			"status":   "success",
			"quantity": "12",
			"values":   values,
		})
		require.NoError(t, err)
		return string(body)
	})
	cli := NewClient(srv.URL, "test-key")

	status, err := cli.GetRentStatus(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "success", status.Status)
	require.Equal(t, 12, status.Quantity)
	require.Len(t, status.Values, 12)
	for i, sms := range status.Values {
		require.Equal(t, fmt.Sprintf("msg-%d", i), sms.Text)
	}
}

func TestGetRentStatusTerminalMessage(t *testing.T) {
	srv := newTestServer(t, func(action string, query map[string]string) string {
		return `{"status":"error","message":"STATUS_FINISH"}`
	})
	cli := NewClient(srv.URL, "test-key")

	status, err := cli.GetRentStatus(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, StatusFinish, status.Message)
	require.Zero(t, status.Quantity)
	require.Empty(t, status.Values)
}
