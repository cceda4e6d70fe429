package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/target/mmk-rpc-api/internal/dispatch"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

// SessionTokenHeader carries the session token for clients that cannot set Authorization.
const SessionTokenHeader = "X-Session-Token"

// Dispatcher is what the transport needs from the dispatch layer.
type Dispatcher interface {
	Dispatch(ctx context.Context, in dispatch.Inbound) rpc.Response
	Routes() []string
}

// RPCHandlerOptions groups dependencies for RPCHandler.
type RPCHandlerOptions struct {
	Dispatcher        Dispatcher // Required
	TrustProxyHeaders bool
	MaxBodyBytes      int64
	Logger            *slog.Logger
}

// RPCHandler turns HTTP requests into dispatcher calls. Every dispatched call answers
// 200 with the response envelope; only unreadable requests get a 4xx status.
type RPCHandler struct {
	dispatcher   Dispatcher
	trustProxy   bool
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewRPCHandler constructs an RPCHandler.
func NewRPCHandler(opts RPCHandlerOptions) (*RPCHandler, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("Dispatcher is required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCHandler{
		dispatcher:   opts.Dispatcher,
		trustProxy:   opts.TrustProxyHeaders,
		maxBodyBytes: opts.MaxBodyBytes,
		logger:       logger.With("component", "rpc_http"),
	}, nil
}

// Route returns the handler serving one method route.
func (h *RPCHandler) Route(route string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, route)
	})
}

// Fallback dispatches whatever path remains after prefix, so unknown methods get
// the METHOD_UNKNOWN envelope instead of a bare 404.
func (h *RPCHandler) Fallback(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, strings.TrimPrefix(r.URL.Path, prefix))
	})
}

func (h *RPCHandler) serve(w http.ResponseWriter, r *http.Request, route string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	inputs, err := readInputs(r)
	if err != nil {
		h.logger.DebugContext(r.Context(), "unreadable request", "route", route, "error", err)
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		WriteJSON(w, status, rpc.FailKind(rpc.KindParamType, err.Error()))
		return
	}

	resp := h.dispatcher.Dispatch(r.Context(), dispatch.Inbound{
		Route:  route,
		Inputs: inputs,
		Token:  bearerToken(r),
		Client: domainauth.ClientBinding{IP: remoteIP(r, h.trustProxy), UserAgent: r.UserAgent()},
	})
	WriteJSON(w, http.StatusOK, resp)
}

var errBodyShape = errors.New("request body must be a JSON object or an array of calls")

// readInputs merges query parameters with the body. Body values win over query values.
// A JSON array body is shorthand for a multicall's "calls" parameter.
func readInputs(r *http.Request) (map[string]any, error) {
	inputs := make(map[string]any)
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 {
			inputs[key] = vals[0]
		}
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return inputs, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for key, vals := range r.PostForm {
			if len(vals) > 0 {
				inputs[key] = vals[0]
			}
		}
		return inputs, nil
	default:
		return mergeJSONBody(r.Body, inputs)
	}
}

func mergeJSONBody(body io.Reader, inputs map[string]any) (map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return inputs, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	switch v := doc.(type) {
	case map[string]any:
		for key, val := range v {
			inputs[key] = val
		}
	case []any:
		inputs["calls"] = v
	default:
		return nil, errBodyShape
	}
	return inputs, nil
}

// bearerToken reads "Authorization: Bearer <token>", falling back to SessionTokenHeader.
func bearerToken(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.Header.Get(SessionTokenHeader))
}

// remoteIP is the caller's address. With trustProxy the first X-Forwarded-For hop wins.
func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
