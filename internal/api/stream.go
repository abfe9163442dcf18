package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pickled-dev/smt-tools/internal/observe"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

// requestReadTimeout bounds the wait for the client's search request after
// the websocket handshake.
const requestReadTimeout = 10 * time.Second

// stream upgrades to a websocket, reads one [fusion.Request] and writes one
// JSON frame per result. The connection is closed normally after Done.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept has already written the HTTP error.
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBodyBytes)

	ctx := r.Context()
	log := observe.Logger(ctx)

	readCtx, cancel := context.WithTimeout(ctx, requestReadTimeout)
	var req fusion.Request
	err = wsjson.Read(readCtx, conn, &req)
	cancel()
	if err != nil {
		log.Debug("stream: read request", "err", err)
		conn.Close(websocket.StatusInvalidFramePayloadData, "expected a search request")
		return
	}

	// Closing the connection mid-search cancels the search.
	ctx = conn.CloseRead(ctx)
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var writeErr error
	err = h.svc.Run(ctx, req, func(res fusion.Result) bool {
		if writeErr = wsjson.Write(ctx, conn, res); writeErr != nil {
			return false
		}
		return true
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		conn.Close(websocket.StatusTryAgainLater, "search timed out")
	case writeErr != nil || err != nil:
		log.Debug("stream: client went away", "write_err", writeErr, "err", err)
	default:
		conn.Close(websocket.StatusNormalClosure, "")
	}
}
