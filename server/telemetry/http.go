package telemetry

import (
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// API exposes a Store over HTTP, so that a dashboard (or a test harness standing in
// for the robot) can read the pipeline's outputs and flip its control flags.
type API struct {
	Log   logs.Log
	Store *Store

	// Writes are rate limited per client IP
	PutLimit  int
	PutWindow time.Duration

	wsUpgrader websocket.Upgrader
}

func NewAPI(log logs.Log, store *Store) *API {
	return &API{
		Log:       log,
		Store:     store,
		PutLimit:  50,
		PutWindow: time.Second,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// AddRoutes registers the telemetry endpoints:
//
//	GET  /api/telemetry/tables
//	GET  /api/telemetry/table?name=SmartDashboard
//	POST /api/telemetry/table?name=SmartDashboard&key=Enabled   (body is a Value)
//	GET  /api/telemetry/ws?name=SmartDashboard                   (stream of Change)
func (a *API) AddRoutes(router *httprouter.Router) {
	limited := httprate.Limit(a.PutLimit, a.PutWindow, httprate.WithKeyFuncs(httprate.KeyByIP))

	www.Handle(a.Log, router, "GET", "/api/telemetry/tables", a.httpTables)
	www.Handle(a.Log, router, "GET", "/api/telemetry/table", a.httpGetTable)
	www.Handle(a.Log, router, "POST", "/api/telemetry/table", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.httpPutValue(w, r, params)
		})).ServeHTTP(w, r)
	})
	www.Handle(a.Log, router, "GET", "/api/telemetry/ws", a.httpWebSocket)
}

func (a *API) httpTables(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, a.Store.TableNames())
}

func (a *API) httpGetTable(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := www.RequiredQueryValue(r, "name")
	www.SendJSON(w, a.Store.Snapshot(name))
}

func (a *API) httpPutValue(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := www.RequiredQueryValue(r, "name")
	key := www.RequiredQueryValue(r, "key")
	v := Value{}
	www.ReadJSON(w, r, &v, 1024*1024)
	switch v.Type {
	case TypeString, TypeNumber, TypeBoolean, TypeStringArray:
	default:
		www.PanicBadRequestf("Invalid value type '%v'", v.Type)
	}
	if err := a.Store.Set(name, key, v); err != nil {
		www.PanicBadRequestf("%v", err)
	}
	www.SendOK(w)
}

func (a *API) httpWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := r.URL.Query().Get("name")
	c, err := a.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Log.Errorf("Telemetry websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	changes := a.Store.Subscribe(name, 256)
	defer a.Store.Unsubscribe(changes)

	// Send the current state first, so the client doesn't start blank
	tables := []string{name}
	if name == "" {
		tables = a.Store.TableNames()
	}
	for _, t := range tables {
		for k, v := range a.Store.Snapshot(t) {
			if err := c.WriteJSON(Change{Table: t, Key: k, Value: v}); err != nil {
				return
			}
		}
	}

	// Detect the client going away
	closed := make(chan bool)
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := c.WriteJSON(change); err != nil {
				a.Log.Infof("Telemetry websocket closed: %v", err)
				return
			}
		}
	}
}
