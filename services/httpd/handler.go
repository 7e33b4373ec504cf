package httpd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/influxdata/httprouter"

	"github.com/flowmesh/flowmesh"
	"github.com/flowmesh/flowmesh/keyvalue"
	"github.com/flowmesh/flowmesh/trigger"
)

const BasePath = "/flowmesh/v1"

// Diagnostic is the logging capability of the HTTP service.
type Diagnostic interface {
	StartedListening(addr string)
	StoppedListening()
	Error(msg string, err error, ctx ...keyvalue.T)
}

// Handler exposes the runtime API: event ingress onto the trigger bus
// and graph deployment control.
type Handler struct {
	rt     *flowmesh.Runtime
	router *httprouter.Router
	diag   Diagnostic
}

func NewHandler(rt *flowmesh.Runtime, d Diagnostic) *Handler {
	h := &Handler{
		rt:     rt,
		router: httprouter.New(),
		diag:   d,
	}
	h.router.PanicHandler = h.panicHandler
	h.router.NotFound = http.HandlerFunc(h.notFound)

	h.handle("GET", "/ping", h.servePing)
	h.handle("POST", "/trigger/:key", h.serveTrigger)
	h.handle("POST", "/graphs", h.serveDeploy)
	h.handle("PUT", "/graphs/:id", h.serveRedeploy)
	h.handle("DELETE", "/graphs/:id", h.serveStop)
	h.handle("GET", "/graphs/:id/stats", h.serveStats)
	h.handle("GET", "/graphs/:id/dot", h.serveDot)
	return h
}

func (h *Handler) handle(method, pattern string, fn http.HandlerFunc) {
	h.router.HandlerFunc(method, BasePath+pattern, fn)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) panicHandler(w http.ResponseWriter, r *http.Request, rcv interface{}) {
	err := fmt.Errorf("%s: %v", r.URL.String(), rcv)
	h.diag.Error("panic serving request", err, keyvalue.KV("stack", string(debug.Stack())))
	httpError(w, "internal error", http.StatusInternalServerError)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	httpError(w, fmt.Sprintf("%s: not found", r.URL.Path), http.StatusNotFound)
}

func (h *Handler) servePing(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// serveTrigger publishes the request body as an event payload under the
// key named in the path. An empty body publishes a nil payload.
func (h *Handler) serveTrigger(w http.ResponseWriter, r *http.Request) {
	key := httprouter.ParamsFromContext(r.Context()).ByName("key")

	var payload interface{}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&payload); err != nil && err != io.EOF {
		httpError(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	h.rt.Bus.Publish(trigger.Event{Key: key, Payload: payload})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveDeploy(w http.ResponseWriter, r *http.Request) {
	d, ok := decodeDeployment(w, r)
	if !ok {
		return
	}
	if _, err := h.rt.Deploy(d); err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": d.ID})
}

func (h *Handler) serveRedeploy(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	d, ok := decodeDeployment(w, r)
	if !ok {
		return
	}
	if d.ID != id {
		httpError(w, fmt.Sprintf("deployment id %q does not match path id %q", d.ID, id), http.StatusBadRequest)
		return
	}
	if _, err := h.rt.Redeploy(d); err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": d.ID})
}

func (h *Handler) serveStop(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	if err := h.rt.StopGraph(id); err != nil {
		httpError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveStats(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	g, ok := h.rt.Graph(id)
	if !ok {
		httpError(w, fmt.Sprintf("unknown graph %q", id), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(g.Stats())
}

func (h *Handler) serveDot(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	g, ok := h.rt.Graph(id)
	if !ok {
		httpError(w, fmt.Sprintf("unknown graph %q", id), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_, _ = w.Write(g.Dot())
}

func decodeDeployment(w http.ResponseWriter, r *http.Request) (flowmesh.Deployment, bool) {
	var d flowmesh.Deployment
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		httpError(w, fmt.Sprintf("invalid deployment: %v", err), http.StatusBadRequest)
		return d, false
	}
	return d, true
}

func httpError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
