package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meemee/studio/api"
	"github.com/meemee/studio/engine"
	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/job"
	"github.com/meemee/studio/ledger"
	"github.com/meemee/studio/notify"
	"github.com/meemee/studio/renderer"
	"github.com/meemee/studio/store/memory"
	"github.com/meemee/studio/template"
)

type instantRenderer struct{}

func (instantRenderer) Submit(context.Context, string) (string, error) { return "task-1", nil }

func (instantRenderer) Status(context.Context, string) (renderer.Status, error) {
	return renderer.Status{Phase: renderer.PhaseSuccess, AssetURLs: []string{"https://x/1.mp4"}}, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *job.Job) (notify.Result, error) {
	return notify.Result{}, nil
}

type testServer struct {
	eng    *engine.Engine
	store  *memory.Store
	ledger *ledger.Memory
	srv    *httptest.Server
}

func newTestServer(t *testing.T, freeQuota int64) *testServer {
	t.Helper()
	catalog := template.NewMapCatalog(
		&template.Template{ID: "greeting", Name: "Greeting", Prompt: template.Text("{name} waves")},
		&template.Template{ID: "secret", Name: "Secret", Status: template.StatusHidden, Prompt: template.Text("{name}")},
	)
	ts := &testServer{store: memory.New(), ledger: ledger.NewMemory(freeQuota)}

	eng, err := engine.New(engine.Deps{
		Store:    ts.store,
		Resolver: template.NewResolver(catalog),
		Renderer: instantRenderer{},
		Ledger:   ts.ledger,
		Notifier: nopNotifier{},
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	ts.eng = eng
	ts.srv = httptest.NewServer(api.New(eng).Handler())
	t.Cleanup(func() {
		ts.srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = eng.Stop(ctx) //nolint:errcheck // test cleanup
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.eng.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestCreateJob(t *testing.T) {
	ts := newTestServer(t, 3)

	var created job.Job
	code := ts.do(t, http.MethodPost, "/v1/jobs", job.CreateRequest{
		OwnerID: 42, TemplateID: "greeting", DisplayName: "Alex", Gender: "male",
	}, &created)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", code, http.StatusAccepted)
	}
	if created.State != job.StateQueued {
		t.Errorf("State = %q, want %q", created.State, job.StateQueued)
	}
	ts.drain(t)

	var got job.Job
	if code := ts.do(t, http.MethodGet, "/v1/jobs/"+created.ID.String(), nil, &got); code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", code, http.StatusOK)
	}
	if got.State != job.StateDone || got.AssetURL != "https://x/1.mp4" {
		t.Errorf("job = %q/%q, want done with asset", got.State, got.AssetURL)
	}

	var bal ledger.Balance
	ts.do(t, http.MethodGet, "/v1/users/42/quota", nil, &bal)
	if bal.Free != 2 || bal.Successful != 1 {
		t.Errorf("balance = %+v, want free 2 and 1 success", bal)
	}

	var jobs []*job.Job
	ts.do(t, http.MethodGet, "/v1/users/42/jobs", nil, &jobs)
	if len(jobs) != 1 {
		t.Errorf("user jobs = %d, want 1", len(jobs))
	}

	var counts api.JobCountsResponse
	ts.do(t, http.MethodGet, "/v1/jobs/counts", nil, &counts)
	if counts.Done != 1 || counts.QueueDepth != 0 {
		t.Errorf("counts = %+v, want 1 done and empty queue", counts)
	}
}

func TestCreateJob_QuotaExhausted(t *testing.T) {
	ts := newTestServer(t, 0)

	code := ts.do(t, http.MethodPost, "/v1/jobs", job.CreateRequest{OwnerID: 42, RawPrompt: "x"}, nil)
	if code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want %d", code, http.StatusPaymentRequired)
	}
}

func TestCreateJob_RefundsRejectedRequest(t *testing.T) {
	ts := newTestServer(t, 3)

	code := ts.do(t, http.MethodPost, "/v1/jobs", job.CreateRequest{
		OwnerID: 42, TemplateID: "missing", DisplayName: "Alex", Gender: "male",
	}, nil)
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", code, http.StatusNotFound)
	}
	code = ts.do(t, http.MethodPost, "/v1/jobs", job.CreateRequest{
		OwnerID: 42, TemplateID: "greeting", DisplayName: "Alex", Gender: "robot",
	}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", code, http.StatusBadRequest)
	}

	var bal ledger.Balance
	ts.do(t, http.MethodGet, "/v1/users/42/quota", nil, &bal)
	if bal.Free != 3 {
		t.Errorf("Free = %d, want 3", bal.Free)
	}
}

func TestGetJob_Errors(t *testing.T) {
	ts := newTestServer(t, 3)

	if code := ts.do(t, http.MethodGet, "/v1/jobs/not-an-id", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want %d", code, http.StatusBadRequest)
	}
	if code := ts.do(t, http.MethodGet, "/v1/jobs/gen_01h455vb4pex5vsknk084sn02q", nil, nil); code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want %d", code, http.StatusNotFound)
	}
	if code := ts.do(t, http.MethodGet, "/v1/jobs?state=bogus", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad state status = %d, want %d", code, http.StatusBadRequest)
	}
}

func TestListTemplates_HidesHidden(t *testing.T) {
	ts := newTestServer(t, 3)

	var out []api.TemplateResponse
	if code := ts.do(t, http.MethodGet, "/v1/templates", nil, &out); code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	if len(out) != 1 || out[0].ID != "greeting" {
		t.Errorf("templates = %+v, want only greeting", out)
	}
}

func TestCreditQuota(t *testing.T) {
	ts := newTestServer(t, 1)

	var bal ledger.Balance
	if code := ts.do(t, http.MethodPost, "/v1/users/7/quota", api.CreditRequest{Amount: 5}, &bal); code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	if bal.Paid != 5 || bal.Available() != 6 {
		t.Errorf("balance = %+v, want 5 paid and 6 available", bal)
	}
	if code := ts.do(t, http.MethodPost, "/v1/users/7/quota", api.CreditRequest{Amount: 0}, nil); code != http.StatusBadRequest {
		t.Errorf("zero credit status = %d, want %d", code, http.StatusBadRequest)
	}
	if code := ts.do(t, http.MethodGet, "/v1/users/abc/quota", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad user status = %d, want %d", code, http.StatusBadRequest)
	}
}

func TestErrorLogRoutes(t *testing.T) {
	ts := newTestServer(t, 3)
	ctx := context.Background()

	ref, err := ts.eng.ErrorLog().LogError(ctx, errlog.Record{Message: "boom", Reason: "timeout", Source: "test"})
	if err != nil {
		t.Fatalf("LogError: %v", err)
	}

	var entries []*errlog.Entry
	ts.do(t, http.MethodGet, "/v1/errors", nil, &entries)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	var entry errlog.Entry
	if code := ts.do(t, http.MethodGet, "/v1/errors/"+ref.String(), nil, &entry); code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", code, http.StatusOK)
	}
	if entry.Message != "boom" {
		t.Errorf("Message = %q, want %q", entry.Message, "boom")
	}

	var purged api.PurgeResponse
	ts.do(t, http.MethodPost, "/v1/errors/purge", nil, &purged)
	if purged.Purged != 1 {
		t.Errorf("Purged = %d, want 1", purged.Purged)
	}
	if code := ts.do(t, http.MethodGet, "/v1/errors/"+ref.String(), nil, nil); code != http.StatusNotFound {
		t.Errorf("purged entry status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, 3)

	var out map[string]string
	if code := ts.do(t, http.MethodGet, "/healthz", nil, &out); code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	if out["status"] != "ok" {
		t.Errorf("status = %q, want %q", out["status"], "ok")
	}
}
