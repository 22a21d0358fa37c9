package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func d1TestServer(t *testing.T, handler http.HandlerFunc) (*d1Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	a := &d1Adapter{
		baseURL:    srv.URL,
		apiToken:   "test-token",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	return a, srv
}

func d1Result(results []map[string]any, lastRowID int64) string {
	body := map[string]any{
		"success": true,
		"result": []map[string]any{{
			"results": results,
			"meta":    map[string]any{"last_row_id": lastRowID},
		}},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func TestD1FetchAll(t *testing.T) {
	adapter, _ := d1TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %q, want /query", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}
		var req d1Request
		json.NewDecoder(r.Body).Decode(&req)
		if !strings.HasPrefix(req.SQL, "SELECT") {
			t.Errorf("sql = %q", req.SQL)
		}
		if len(req.Params) != 1 || req.Params[0] != "BIN-R1P1" {
			t.Errorf("params = %v", req.Params)
		}
		w.Write([]byte(d1Result([]map[string]any{
			{"bin_id": "BIN-R1P1", "calculated_quantity": float64(42)},
		}, 0)))
	})

	rows, err := adapter.FetchAll(context.Background(),
		`SELECT * FROM current_inventory WHERE bin_id = ?`, "BIN-R1P1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	// JSON numbers arrive as float64; the accessor must normalize.
	if q := rows[0].Int("calculated_quantity"); q != 42 {
		t.Errorf("quantity = %d, want 42", q)
	}
}

func TestD1ExecuteReturnsLastRowID(t *testing.T) {
	adapter, _ := d1TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(d1Result(nil, 17)))
	})

	id, err := adapter.Execute(context.Background(),
		`INSERT INTO inventory_data (bin_id) VALUES (?)`, "BIN-R1P1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if id != 17 {
		t.Errorf("id = %d, want 17", id)
	}
}

func TestD1FetchOneMissingRowIsNil(t *testing.T) {
	adapter, _ := d1TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(d1Result([]map[string]any{}, 0)))
	})

	row, err := adapter.FetchOne(context.Background(), `SELECT 1 WHERE 0`)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if row != nil {
		t.Errorf("row = %v, want nil", row)
	}
}

func TestD1HTTPErrorSurfaces(t *testing.T) {
	adapter, _ := d1TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such database", http.StatusNotFound)
	})

	_, err := adapter.FetchAll(context.Background(), `SELECT 1`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "d1 HTTP 404") {
		t.Errorf("err = %v", err)
	}
}

func TestD1APIErrorSurfaces(t *testing.T) {
	adapter, _ := d1TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"errors":[{"code":7500,"message":"query error"}]}`))
	})

	_, err := adapter.Execute(context.Background(), `INSERT garbage`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "7500") {
		t.Errorf("err = %v", err)
	}
}

func TestD1ExecScriptSplitsStatements(t *testing.T) {
	var statements []string
	adapter, _ := d1TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req d1Request
		json.NewDecoder(r.Body).Decode(&req)
		statements = append(statements, req.SQL)
		w.Write([]byte(d1Result(nil, 0)))
	})

	script := `CREATE TABLE a (id INTEGER);
	CREATE TABLE b (id INTEGER);

	CREATE INDEX idx_b ON b(id);`
	if err := adapter.ExecScript(context.Background(), script); err != nil {
		t.Fatalf("exec script: %v", err)
	}
	if len(statements) != 3 {
		t.Fatalf("statements = %d, want 3 (one request per statement)", len(statements))
	}
	for _, s := range statements {
		if strings.TrimSpace(s) == "" {
			t.Error("blank statement should have been skipped")
		}
	}
}
