package endure

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderInput struct {
	OrderID  string  `json:"order_id"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
}

func TestDiscoverEndpoint(t *testing.T) {
	registry := NewRegistry()
	orders := NewServiceWithRegistry("orders", registry)
	_, err := orders.Register(func(_ *WorkflowContext, input orderInput) (map[string]any, error) {
		return nil, nil
	}, WithName("process_order"), WithRetention(14))
	require.NoError(t, err)

	srv := httptest.NewServer(registry.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/discover")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))

	services := doc["services"].([]any)
	require.Len(t, services, 1)
	service := services[0].(map[string]any)
	assert.Equal(t, "orders", service["name"])

	workflows := service["workflows"].([]any)
	require.Len(t, workflows, 1)
	wf := workflows[0].(map[string]any)
	assert.Equal(t, "process_order", wf["name"])
	assert.Equal(t, map[string]any{"order_id": "str", "quantity": "int", "total": "float"}, wf["input"])
	assert.Equal(t, "dict", wf["output"])
	assert.Equal(t, float64(14), wf["idem_retention"])
}

func TestDiscoverEmptyRegistry(t *testing.T) {
	registry := NewRegistry()
	srv := httptest.NewServer(registry.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/discover")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Empty(t, doc["services"])
}

func TestDiscoverListsServicesInRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"orders", "users", "payments"} {
		svc := NewServiceWithRegistry(name, registry)
		_, err := svc.Register(func(_ *WorkflowContext, input map[string]any) (any, error) {
			return input, nil
		}, WithName("wf"))
		require.NoError(t, err)
	}

	srv := httptest.NewServer(registry.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/discover")
	require.NoError(t, err)
	defer resp.Body.Close()

	var doc struct {
		Services []struct {
			Name string `json:"name"`
		} `json:"services"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))

	got := make([]string, len(doc.Services))
	for i, s := range doc.Services {
		got[i] = s.Name
	}
	assert.Equal(t, []string{"orders", "users", "payments"}, got)
}
