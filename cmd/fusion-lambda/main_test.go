package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	t.Setenv("SMT_COMPENDIUM_PATH", "../../pkg/fusion/testdata/compendium.yaml")
	h, err := newHandler()
	if err != nil {
		t.Fatalf("newHandler: %v", err)
	}
	return h
}

func post(body string) events.LambdaFunctionURLRequest {
	var ev events.LambdaFunctionURLRequest
	ev.RequestContext.HTTP.Method = http.MethodPost
	ev.Body = body
	return ev
}

func TestServe_Search(t *testing.T) {
	h := newTestHandler(t)

	resp, err := h.serve(context.Background(), post(`{"skills":["Dia","Agi"],"creature":"Lamia"}`))
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, resp.Body)
	}
	var out fusion.Outcome
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Chains) != 1 || out.Chains[0].Cost != 4800 {
		t.Errorf("outcome = %+v, want one chain costing 4800", out)
	}
}

func TestServe_Base64Body(t *testing.T) {
	h := newTestHandler(t)

	ev := post(base64.StdEncoding.EncodeToString([]byte(`{"skills":["Rampage"],"creature":"Neko Shogun"}`)))
	ev.IsBase64Encoded = true
	resp, _ := h.serve(context.Background(), ev)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, resp.Body)
	}
}

func TestServe_BadRequests(t *testing.T) {
	h := newTestHandler(t)

	get := post("")
	get.RequestContext.HTTP.Method = http.MethodGet

	badBase64 := post("not base64!")
	badBase64.IsBase64Encoded = true

	tests := []struct {
		name string
		ev   events.LambdaFunctionURLRequest
		want int
	}{
		{name: "wrong method", ev: get, want: http.StatusMethodNotAllowed},
		{name: "bad base64", ev: badBase64, want: http.StatusBadRequest},
		{name: "bad json", ev: post(`{"skills":`), want: http.StatusBadRequest},
		{name: "unknown field", ev: post(`{"skills":["Agi"],"demon":"Pixie"}`), want: http.StatusBadRequest},
		{name: "no skills", ev: post(`{"creature":"Lamia"}`), want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := h.serve(context.Background(), tc.ev)
			if err != nil {
				t.Fatalf("serve: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tc.want, resp.Body)
			}
		})
	}
}
