package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/rest"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// HeaderErrorCode carries the error code, so that HEAD responses still
// report it.
const HeaderErrorCode = "X-Error-Code"

// respond sets the status and range headers for the outcome of q and
// writes the envelope.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, format rest.Format, q *ast.Query, resp types.Response) {
	switch {
	case resp.Error != nil:
		resp.Status = resp.Error.Code.HTTPStatus()
	case r.Method == http.MethodPost && q != nil:
		resp.Status = http.StatusCreated
	default:
		resp.Status = http.StatusOK
	}

	if resp.Error == nil && q != nil && q.IsRead() {
		offset := 0
		if q.Offset != nil {
			offset = *q.Offset
		}
		w.Header().Set(rest.HeaderContentRange, rest.ContentRange(offset, len(resp.Rows()), resp.Count))
	}
	s.write(w, r, format, resp)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, format rest.Format, resp types.Response) {
	if resp.Error != nil {
		w.Header().Set(HeaderErrorCode, string(resp.Error.Code))
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}

	var (
		body []byte
		err  error
	)
	if format == rest.FormatMsgpack {
		body, err = msgpack.Marshal(&resp)
	} else {
		body, err = json.Marshal(resp)
	}
	if err != nil {
		debug.Error("encode envelope failed", "error", err)
		resp = types.Fail(types.Wrap(types.CodeUpstreamDriverError, err, "could not encode response"))
		format = rest.FormatJSON
		body, _ = json.Marshal(resp)
		w.Header().Set(HeaderErrorCode, string(resp.Error.Code))
	}

	w.Header().Set("Content-Type", format.ContentType())
	if r.Method == http.MethodHead {
		w.WriteHeader(resp.Status)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(resp.Status)
	if _, err := w.Write(body); err != nil {
		debug.Debug("write response failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", rest.MediaJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Debug("write response failed", "error", err)
	}
}
