package rpc

import (
	"context"
	"encoding/json"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/pool"
	"github.com/tomasbasham/chrome-daemon/internal/session"
)

// handlerFunc is one method's implementation: decode params, do the
// work, return a JSON-serializable result or an error the dispatcher
// will map to an RPC code.
type handlerFunc func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error)

// Dispatcher is the single entry point handle(client_id, request) of
// §4.7, backed by the pool every session-scoped method resolves
// session_id through.
type Dispatcher struct {
	Pool *pool.Pool
	Cfg  config.Config

	// shutdown is closed by the "shutdown" method; the
	// supervisor selects on it alongside OS signals.
	shutdown chan struct{}

	methods map[string]handlerFunc
}

// New builds a Dispatcher with the full method table wired in.
func New(p *pool.Pool, cfg config.Config) *Dispatcher {
	d := &Dispatcher{Pool: p, Cfg: cfg, shutdown: make(chan struct{})}
	d.methods = buildMethodTable()
	return d
}

// ShutdownRequested is closed once a client calls the shutdown method.
func (d *Dispatcher) ShutdownRequested() <-chan struct{} { return d.shutdown }

// Handle resolves method against the table, decodes params, invokes the
// handler, and maps the outcome to a wire Response. It never panics on
// malformed input: JSON decode failures surface as invalid-params.
func (d *Dispatcher) Handle(ctx context.Context, clientID string, req Request) Response {
	if req.Method == "" {
		return errorResponse(req.ID, chromeerr.CodeInvalidRequest, "missing method")
	}

	fn, ok := d.methods[req.Method]
	if !ok {
		return errorResponse(req.ID, chromeerr.CodeMethodNotFound, "unknown method: "+req.Method)
	}

	result, err := fn(ctx, d, req.Params)
	if err != nil {
		code := chromeerr.CodeFor(err)
		return errorResponse(req.ID, code, err.Error())
	}
	return okResponse(req.ID, result)
}

// resolveSession pulls session_id out of params and resolves it through
// the pool; a missing session_id is invalid-params, an unknown one is
// session-not-found (§4.7).
func resolveSession(d *Dispatcher, params json.RawMessage) (*session.Session, json.RawMessage, error) {
	var envelope struct {
		SessionID string `json:"session_id"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &envelope); err != nil {
			return nil, nil, chromeerr.New(chromeerr.KindInvalidParams, "malformed params: "+err.Error())
		}
	}
	if envelope.SessionID == "" {
		return nil, nil, chromeerr.New(chromeerr.KindInvalidParams, "missing session_id")
	}
	sess, ok := d.Pool.Get(envelope.SessionID)
	if !ok {
		return nil, nil, chromeerr.New(chromeerr.KindSessionNotFound, envelope.SessionID)
	}
	return sess, params, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return chromeerr.New(chromeerr.KindInvalidParams, "malformed params: "+err.Error())
	}
	return nil
}

func buildMethodTable() map[string]handlerFunc {
	m := map[string]handlerFunc{}
	registerSessionMethods(m)
	registerNavigationMethods(m)
	registerInputMethods(m)
	registerInspectMethods(m)
	registerExtrasMethods(m)
	registerStateMethods(m)
	registerPageMethods(m)
	registerTelemetryMethods(m)
	registerInfraMethods(m)
	return m
}
