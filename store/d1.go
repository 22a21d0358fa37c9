package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"binwatch/config"
)

// d1Adapter talks to the Cloudflare D1 HTTP API. Every call is one
// network round trip; the endpoint accepts a single statement per
// request, so scripts are split on statement boundaries. Transport and
// query errors are surfaced to the caller unmodified so upstream logic
// can decide whether to tolerate them.
type d1Adapter struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

func openD1(cfg *config.D1Config) *d1Adapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &d1Adapter{
		baseURL: fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/d1/database/%s",
			cfg.AccountID, cfg.DatabaseID),
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *d1Adapter) Name() string { return "d1" }

func (a *d1Adapter) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

type d1Request struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type d1Response struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result []struct {
		Results []map[string]any `json:"results"`
		Meta    struct {
			LastRowID int64 `json:"last_row_id"`
		} `json:"meta"`
	} `json:"result"`
}

func (a *d1Adapter) query(ctx context.Context, sqlText string, args []any) (*d1Response, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(d1Request{SQL: sqlText, Params: args})
	if err != nil {
		return nil, fmt.Errorf("d1 marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("d1 read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("d1 HTTP %d: %s", resp.StatusCode, string(data))
	}
	var out d1Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("d1 decode: %w", err)
	}
	if !out.Success {
		if len(out.Errors) > 0 {
			return nil, fmt.Errorf("d1 error %d: %s", out.Errors[0].Code, out.Errors[0].Message)
		}
		return nil, fmt.Errorf("d1 query failed")
	}
	return &out, nil
}

func (a *d1Adapter) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	resp, err := a.query(ctx, query, args)
	if err != nil {
		return 0, err
	}
	if len(resp.Result) == 0 {
		return 0, nil
	}
	return resp.Result[0].Meta.LastRowID, nil
}

func (a *d1Adapter) ExecuteMany(ctx context.Context, query string, argSets [][]any) error {
	for _, args := range argSets {
		if _, err := a.query(ctx, query, args); err != nil {
			return err
		}
	}
	return nil
}

func (a *d1Adapter) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := a.FetchAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (a *d1Adapter) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	resp, err := a.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	out := make([]Row, 0, len(resp.Result[0].Results))
	for _, r := range resp.Result[0].Results {
		out = append(out, Row(r))
	}
	return out, nil
}

// ExecScript splits the script on statement boundaries and issues each
// statement as its own request, since D1 accepts one per call.
func (a *d1Adapter) ExecScript(ctx context.Context, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := a.query(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}
