// Command fusion-lambda runs one fusion-chain search per AWS Lambda Function
// URL invocation. The request body is a search request in the same JSON form
// as POST /v1/search, and the response is its outcome.
//
// Configuration comes from SMT_* environment variables only; at least
// SMT_COMPENDIUM_PATH must be set.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/pickled-dev/smt-tools/internal/app"
	"github.com/pickled-dev/smt-tools/internal/config"
	"github.com/pickled-dev/smt-tools/internal/service"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

type handler struct {
	svc *service.Service
}

func (h *handler) serve(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	if m := event.RequestContext.HTTP.Method; m != "" && m != http.MethodPost {
		return errResp(http.StatusMethodNotAllowed, "only POST is supported")
	}

	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(http.StatusBadRequest, "invalid base64 body")
		}
		body = string(decoded)
	}

	var req fusion.Request
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return errResp(http.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	if len(req.Skills) == 0 {
		return errResp(http.StatusBadRequest, "skills must not be empty")
	}

	out, err := h.svc.Search(ctx, req)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errResp(http.StatusGatewayTimeout, "search timed out")
	case err != nil:
		slog.Error("search failed", "err", err)
		return errResp(http.StatusInternalServerError, "internal error")
	}

	respJSON, err := json.Marshal(out)
	if err != nil {
		return errResp(http.StatusInternalServerError, "internal error")
	}
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func newHandler() (*handler, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	c, err := app.LoadCompendium(cfg.Compendium)
	if err != nil {
		return nil, err
	}
	return &handler{svc: service.New(c, service.WithLimits(app.Limits(cfg.Search)))}, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	h, err := newHandler()
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	lambda.Start(h.serve)
}
