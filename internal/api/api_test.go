package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pickled-dev/smt-tools/internal/buildstore"
	"github.com/pickled-dev/smt-tools/internal/service"
	"github.com/pickled-dev/smt-tools/pkg/compendium"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

func newTestServer(t *testing.T, opts ...service.Option) *httptest.Server {
	t.Helper()
	c, err := compendium.LoadYAML("../../pkg/fusion/testdata/compendium.yaml")
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	opts = append([]service.Option{service.WithBuildStore(buildstore.NewMemStore())}, opts...)
	mux := http.NewServeMux()
	New(service.New(c, opts...)).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func decodeBody[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestSearch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/search", `{"creature": "Lamia", "skills": ["Dia", "Agi"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	out := decodeBody[fusion.Outcome](t, body)
	if len(out.Chains) != 1 || out.Chains[0].Cost != 4800 {
		t.Errorf("chains = %+v", out.Chains)
	}
	if out.Stats.Chains != 1 || out.Stats.Steps == 0 {
		t.Errorf("stats = %+v", out.Stats)
	}
}

func TestSearch_BadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `skills=Agi`},
		{name: "unknown field", body: `{"skills": ["Agi"], "demon": "Pixie"}`},
		{name: "wrong type", body: `{"skills": "Agi"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp, body := do(t, http.MethodPost, srv.URL+"/v1/search", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if e := decodeBody[errorResponse](t, body); e.Error == "" {
				t.Errorf("empty error message")
			}
		})
	}
}

func TestSearch_FailureIsData(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/search", `{"skills": ["Agii"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody[fusion.Outcome](t, body)
	if len(out.Failures) != 1 || out.Failures[0].Reason != fusion.ReasonUnknownSkill {
		t.Fatalf("failures = %+v", out.Failures)
	}
	if s := out.Failures[0].Suggestions; len(s) == 0 || s[0] != "Agi" {
		t.Errorf("suggestions = %v, want Agi first", s)
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, service.WithLimits(service.Limits{MaxBatch: 2}))

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/search/batch",
		`{"requests": [{"creature": "Lamia", "skills": ["Dia", "Agi"]}, {"creature": "Neko Shogun", "skills": ["Rampage"]}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	got := decodeBody[batchResponse](t, body)
	if len(got.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(got.Results))
	}
	if got.Results[1].Chains[0].Result != "Neko Shogun" {
		t.Errorf("second result = %+v", got.Results[1].Chains)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/search/batch",
		`{"requests": [{"skills": ["Agi"]}, {"skills": ["Dia"]}, {"skills": ["Zio"]}]}`)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized batch status = %d, want 413", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/search/batch", `{"requests": []}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", resp.StatusCode)
	}
}

func TestLookups(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/creatures/lamia", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("creature status = %d", resp.StatusCode)
	}
	cr := decodeBody[service.CreatureInfo](t, body)
	if cr.Name != "Lamia" || len(cr.Producing) != 2 {
		t.Errorf("creature = %+v", cr)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/skills/Rampage", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("skill status = %d", resp.StatusCode)
	}
	sk := decodeBody[service.SkillInfo](t, body)
	if len(sk.InnateTo) != 3 {
		t.Errorf("InnateTo = %v, want Pyro Jack, Lamia, Mara", sk.InnateTo)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/creatures/Pixy", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown creature status = %d, want 404", resp.StatusCode)
	}
	if e := decodeBody[errorResponse](t, body); len(e.Suggestions) == 0 || e.Suggestions[0] != "Pixie" {
		t.Errorf("suggestions = %v", e.Suggestions)
	}
}

func TestBuilds(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	for _, body := range []string{
		`{"creature": "Lamia", "skills": ["Dia", "Agi"]}`,
		`{"creature": "Neko Shogun", "skills": ["Rampage"]}`,
	} {
		if resp, b := do(t, http.MethodPost, srv.URL+"/v1/search", body); resp.StatusCode != http.StatusOK {
			t.Fatalf("search status = %d, body %s", resp.StatusCode, b)
		}
	}

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/builds?limit=1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if got := decodeBody[listResponse](t, body); len(got.Builds) != 1 {
		t.Errorf("limit=1 returned %d builds", len(got.Builds))
	}

	_, body = do(t, http.MethodGet, srv.URL+"/v1/builds?target=Lamia", "")
	list := decodeBody[listResponse](t, body)
	if len(list.Builds) != 1 || list.Builds[0].Target != "Lamia" {
		t.Fatalf("target=Lamia builds = %+v", list.Builds)
	}
	id := list.Builds[0].ID

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/builds/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if b := decodeBody[buildstore.Build](t, body); b.BestCost != 4800 {
		t.Errorf("BestCost = %d, want 4800", b.BestCost)
	}

	if resp, _ = do(t, http.MethodDelete, srv.URL+"/v1/builds/"+id, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	if resp, _ = do(t, http.MethodGet, srv.URL+"/v1/builds/"+id, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
	if resp, _ = do(t, http.MethodGet, srv.URL+"/v1/builds?limit=zero", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestStream(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/search/stream", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, fusion.Request{Skills: []string{"Dia", "Agi"}}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var kinds []fusion.Kind
	for {
		var res fusion.Result
		err := wsjson.Read(ctx, conn, &res)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		kinds = append(kinds, res.Kind)
	}

	want := []fusion.Kind{fusion.KindFailure, fusion.KindChain, fusion.KindChain, fusion.KindDone}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestStream_BadRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/search/stream", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err = conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusInvalidFramePayloadData {
		t.Errorf("close status = %v, want StatusInvalidFramePayloadData", got)
	}
}
