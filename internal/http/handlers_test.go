package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fundledger/internal/auth"
	"fundledger/internal/core"
	"fundledger/internal/service"
)

// memStore is an in-memory service.Store for handler tests.
type memStore struct {
	nextID   int64
	txs      map[int64]core.Transaction
	activity []core.ActivityEntry
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, txs: make(map[int64]core.Transaction)}
}

func (m *memStore) Create(ctx context.Context, tx core.Transaction, createdBy string) (core.Transaction, error) {
	tx.ID = m.nextID
	m.nextID++
	tx.CreatedBy = createdBy
	tx.CreatedAt = time.Now().UTC()
	m.txs[tx.ID] = tx
	return tx, nil
}

func (m *memStore) Update(ctx context.Context, id int64, tx core.Transaction) (core.Transaction, error) {
	existing, ok := m.txs[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	tx.ID = id
	tx.CreatedBy = existing.CreatedBy
	tx.CreatedAt = existing.CreatedAt
	m.txs[id] = tx
	return tx, nil
}

func (m *memStore) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := m.txs[id]; !ok {
		return false, nil
	}
	delete(m.txs, id)
	return true, nil
}

func (m *memStore) Find(ctx context.Context, id int64) (*core.Transaction, error) {
	tx, ok := m.txs[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (m *memStore) List(ctx context.Context, filter core.Filter) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		if filter.Kind != "" && tx.Kind != filter.Kind {
			continue
		}
		if filter.Category != "" && tx.Category != filter.Category {
			continue
		}
		if !filter.DateFrom.IsZero() && tx.OccurredOn.String() < filter.DateFrom.String() {
			continue
		}
		if !filter.DateTo.IsZero() && tx.OccurredOn.String() > filter.DateTo.String() {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredOn.String() != out[j].OccurredOn.String() {
			return out[i].OccurredOn.String() > out[j].OccurredOn.String()
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) AppendActivity(ctx context.Context, entry core.ActivityEntry) error {
	m.activity = append(m.activity, entry)
	return nil
}

func (m *memStore) ListActivity(ctx context.Context, limit int) ([]core.ActivityEntry, error) {
	if limit > len(m.activity) {
		limit = len(m.activity)
	}
	return m.activity[:limit], nil
}

func (m *memStore) Close() error { return nil }

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server  *Server
	ts      *httptest.Server
	issuer  *auth.TokenIssuer
	manager string
	viewer  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	users, err := auth.ParseUsers(fmt.Sprintf(
		"alice:%s:funding.manage;bob:%s:funding.view", hash, hash))
	if err != nil {
		t.Fatalf("parse users: %v", err)
	}

	svc := service.NewLedgerService(newMemStore(), auth.CapabilityAuthorizer{}, nil)
	srv := NewServer(":0", svc, issuer, users, 50)
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	managerToken, err := issuer.Mint(auth.Caller{ID: "alice", Name: "alice", Capabilities: []string{auth.CapManage}})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	viewerToken, err := issuer.Mint(auth.Caller{ID: "bob", Name: "bob", Capabilities: []string{auth.CapView}})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	return &testEnv{server: srv, ts: ts, issuer: issuer, manager: managerToken, viewer: viewerToken}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func validBody() core.TransactionInput {
	return core.TransactionInput{
		Kind:       "income",
		Amount:     "100.00",
		Category:   "Sponsor",
		Note:       "annual grant",
		OccurredOn: "2024-06-01",
	}
}

func TestCreateTransaction(t *testing.T) {
	env := newTestEnv(t)

	t.Run("201 with assigned id", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/funding", env.manager, validBody())
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want 201", resp.StatusCode)
		}
		created := decode[core.Transaction](t, resp)
		if created.ID == 0 || created.CreatedBy != "alice" {
			t.Errorf("unexpected body: %+v", created)
		}
	})

	t.Run("400 with field map", func(t *testing.T) {
		body := validBody()
		body.Amount = "-5"
		body.Kind = "refund"
		resp := env.do(t, http.MethodPost, "/funding", env.manager, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		eb := decode[errorBody](t, resp)
		if eb.Error != "validation_failed" {
			t.Errorf("error = %q", eb.Error)
		}
		if _, ok := eb.Fields["amount"]; !ok {
			t.Errorf("missing amount field error: %v", eb.Fields)
		}
		if _, ok := eb.Fields["kind"]; !ok {
			t.Errorf("missing kind field error: %v", eb.Fields)
		}
	})

	t.Run("403 for viewer", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/funding", env.viewer, validBody())
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("401 without token", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/funding", "", validBody())
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestUpdateTransaction(t *testing.T) {
	env := newTestEnv(t)
	created := decode[core.Transaction](t, env.do(t, http.MethodPost, "/funding", env.manager, validBody()))

	t.Run("200 on PUT", func(t *testing.T) {
		body := validBody()
		body.Amount = "150.00"
		resp := env.do(t, http.MethodPut, fmt.Sprintf("/funding/%d", created.ID), env.manager, body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		updated := decode[core.Transaction](t, resp)
		if updated.Amount.Cents != 15000 {
			t.Errorf("amount = %d, want 15000", updated.Amount.Cents)
		}
		if updated.CreatedBy != created.CreatedBy {
			t.Errorf("created_by changed: %q", updated.CreatedBy)
		}
	})

	t.Run("200 on POST alias", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, fmt.Sprintf("/funding/%d", created.ID), env.manager, validBody())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("404 unknown id", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, "/funding/9999", env.manager, validBody())
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("404 non-numeric id", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, "/funding/abc", env.manager, validBody())
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestDeleteTransaction(t *testing.T) {
	env := newTestEnv(t)
	created := decode[core.Transaction](t, env.do(t, http.MethodPost, "/funding", env.manager, validBody()))

	t.Run("403 for viewer", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, fmt.Sprintf("/funding/%d", created.ID), env.viewer, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("200 then 404", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, fmt.Sprintf("/funding/%d", created.ID), env.manager, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		body := decode[map[string]bool](t, resp)
		if !body["deleted"] {
			t.Errorf(`body = %v, want {"deleted":true}`, body)
		}
		resp = env.do(t, http.MethodDelete, fmt.Sprintf("/funding/%d", created.ID), env.manager, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestListTransactions(t *testing.T) {
	env := newTestEnv(t)
	seed := []core.TransactionInput{
		{Kind: "income", Amount: "100.00", Category: "Sponsor", OccurredOn: "2024-06-01"},
		{Kind: "expense", Amount: "40.00", Category: "Supplies", OccurredOn: "2024-06-02"},
		{Kind: "expense", Amount: "10.00", Category: "Supplies", OccurredOn: "2024-06-03"},
	}
	for _, in := range seed {
		if resp := env.do(t, http.MethodPost, "/funding", env.manager, in); resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed failed: %d", resp.StatusCode)
		}
	}

	t.Run("viewer can list with summary", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/funding", env.viewer, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		res := decode[service.ListResult](t, resp)
		if len(res.Transactions) != 3 {
			t.Fatalf("got %d transactions, want 3", len(res.Transactions))
		}
		if res.Transactions[0].OccurredOn.String() != "2024-06-03" {
			t.Errorf("not ordered newest first: %s", res.Transactions[0].OccurredOn)
		}
		if res.Summary.NetTotal.Cents != 5000 {
			t.Errorf("net = %d, want 5000", res.Summary.NetTotal.Cents)
		}
	})

	t.Run("filters narrow list and summary", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/funding?kind=expense&category=Supplies", env.viewer, nil)
		res := decode[service.ListResult](t, resp)
		if len(res.Transactions) != 2 {
			t.Fatalf("got %d transactions, want 2", len(res.Transactions))
		}
		if res.Summary.ExpenseTotal.Cents != 5000 {
			t.Errorf("expense total = %d, want 5000", res.Summary.ExpenseTotal.Cents)
		}
	})

	t.Run("bad filter value is 400", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/funding?kind=refund", env.viewer, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	if resp := env.do(t, http.MethodPost, "/funding", env.manager, validBody()); resp.StatusCode != http.StatusCreated {
		t.Fatal("seed failed")
	}

	t.Run("csv with attachment disposition", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/funding/export", env.manager, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
			t.Errorf("content type = %q", ct)
		}
		cd := resp.Header.Get("Content-Disposition")
		if !strings.HasPrefix(cd, `attachment; filename="funding-export-`) {
			t.Errorf("content disposition = %q", cd)
		}
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		if !strings.HasPrefix(buf.String(), "id,kind,amount,category,note,occurred_on") {
			t.Errorf("missing csv header: %q", buf.String())
		}
	})

	t.Run("pdf", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/funding/export.pdf", env.manager, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("content type = %q", ct)
		}
	})

	t.Run("export needs manage", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/funding/export", env.viewer, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
	})
}

func TestTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid credentials mint usable token", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/token", "", map[string]string{"name": "alice", "password": "pw"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		body := decode[map[string]string](t, resp)
		token := body["token"]
		if token == "" {
			t.Fatal("empty token")
		}
		if resp := env.do(t, http.MethodGet, "/funding", token, nil); resp.StatusCode != http.StatusOK {
			t.Errorf("minted token rejected: %d", resp.StatusCode)
		}
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/token", "", map[string]string{"name": "alice", "password": "nope"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

// End-to-end walk of the full ledger lifecycle over the wire.
func TestLedgerLifecycle(t *testing.T) {
	env := newTestEnv(t)

	income := decode[core.Transaction](t, env.do(t, http.MethodPost, "/funding", env.manager, core.TransactionInput{
		Kind: "income", Amount: "100.00", Category: "Sponsor", OccurredOn: "2024-06-01",
	}))
	expense := decode[core.Transaction](t, env.do(t, http.MethodPost, "/funding", env.manager, core.TransactionInput{
		Kind: "expense", Amount: "40.00", Category: "Supplies", OccurredOn: "2024-06-02",
	}))

	res := decode[service.ListResult](t, env.do(t, http.MethodGet, "/funding", env.viewer, nil))
	if res.Summary.IncomeTotal.Cents != 10000 || res.Summary.ExpenseTotal.Cents != 4000 || res.Summary.NetTotal.Cents != 6000 {
		t.Fatalf("summary wrong: %+v", res.Summary)
	}
	supplies := res.Summary.ByCategory["Supplies"]
	if supplies.Expense.Cents != 4000 {
		t.Fatalf("by-category wrong: %+v", res.Summary.ByCategory)
	}

	body := core.TransactionInput{Kind: "expense", Amount: "45.00", Category: "Supplies", OccurredOn: "2024-06-02"}
	if resp := env.do(t, http.MethodPut, fmt.Sprintf("/funding/%d", expense.ID), env.manager, body); resp.StatusCode != http.StatusOK {
		t.Fatalf("update failed: %d", resp.StatusCode)
	}

	res = decode[service.ListResult](t, env.do(t, http.MethodGet, "/funding", env.viewer, nil))
	if res.Summary.NetTotal.Cents != 5500 {
		t.Fatalf("net after update = %d, want 5500", res.Summary.NetTotal.Cents)
	}

	if resp := env.do(t, http.MethodDelete, fmt.Sprintf("/funding/%d", income.ID), env.manager, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete failed: %d", resp.StatusCode)
	}

	res = decode[service.ListResult](t, env.do(t, http.MethodGet, "/funding", env.viewer, nil))
	if len(res.Transactions) != 1 || res.Summary.NetTotal.Cents != -4500 {
		t.Fatalf("final state wrong: %d transactions, net %d", len(res.Transactions), res.Summary.NetTotal.Cents)
	}
}
