/*
   magpie - DiscFerret disc image acquisition
   Copyright (c) 2026, the magpie authors
   Portions copyright (c) 2021, Alexander Vollschwitz

   This file is part of magpie.

   magpie is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   magpie is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with magpie. If not, see <http://www.gnu.org/licenses/>.
*/

package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/acquire"
	"github.com/discferret/magpie/pkg/registry"
)

// DefaultPort is used when the listen address does not contain a port.
const DefaultPort = 8888

// Acquisition is the running acquisition the API reports on.
// *acquire.Sequencer satisfies it.
type Acquisition interface {
	Progress() acquire.Progress
	Cancel()
}

//
type APIServer interface {
	Serve() error
	Stop() error
}

/*
	NewAPIServer creates the control API server. Either of acq and reg may be
	nil, in which case the routes depending on them report that they are not
	available.
*/
func NewAPIServer(addr string, acq Acquisition, reg *registry.Registry) APIServer {
	return newAPI(addr, acq, reg)
}

//
func newAPI(addr string, acq Acquisition, reg *registry.Registry) *api {
	acquire.RegisterMetrics()

	if len(strings.Split(addr, ":")) < 2 {
		addr = fmt.Sprintf("%s:%d", addr, DefaultPort)
	}

	a := &api{
		address:       addr,
		acquisition:   acq,
		registry:      reg,
		watchInterval: time.Second,
		longPollQueue: make(chan chan *acquire.Progress),
		stop:          make(chan struct{}),
	}
	// created up front so that Stop works whether or not Serve has started
	a.server = &http.Server{Addr: addr, Handler: a.router()}
	return a
}

//
type api struct {
	address     string
	acquisition Acquisition
	registry    *registry.Registry
	server      *http.Server
	//
	watchInterval time.Duration
	longPollQueue chan chan *acquire.Progress
	stop          chan struct{}
	stopOnce      sync.Once
}

//
func (a *api) router() *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "status", "GET", "/status", a.status)
	addRoute(router, "watch", "GET", "/watch", a.watch)
	addRoute(router, "cancel", "PUT", "/cancel", a.cancel)
	addRoute(router, "drives", "GET", "/drives", a.drives)
	addRoute(router, "drive", "GET", "/drive/{type}", a.drive)
	addRoute(router, "config", "PUT", "/config", a.config)

	router.Methods("GET").Path("/metrics").Name("metrics").Handler(
		requestLogger(promhttp.Handler(), "metrics"))

	return router
}

//
func (a *api) Serve() error {

	log.Infof("magpie API starts listening on %s", a.address)
	go a.watchProgress()

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

//
func (a *api) Stop() error {
	var err error
	a.stopOnce.Do(func() {
		log.Info("API server stopping...")
		close(a.stop)
		err = a.server.Shutdown(context.Background())
	})
	return err
}

//
func addRoute(r *mux.Router, name, method, pattern string,
	handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

//
func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"path":   r.RequestURI,
		}).Debugf("API BEGIN | %s", name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API END   | %s", name)
	})
}

//
func getArg(req *http.Request, arg string) (string, error) {
	ret := req.URL.Query().Get(arg)
	if ret != "" {
		return url.QueryUnescape(ret)
	}
	return ret, nil
}

//
func setHeaders(h http.Header, json bool) {
	if json {
		h.Set("Content-Type", "application/json; charset=UTF-8")
	} else {
		h.Set("Content-Type", "text/plain; charset=UTF-8")
	}
}

//
func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	log.Errorf("%v", e)

	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(fmt.Sprintf("%v\n", e))); err != nil {
		log.Errorf("problem writing error: %v", err)
	}

	return true
}

//
func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), true)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing reply: %v", err)
	}
}

// wantsJSON checks both the content type and the accepted types
func wantsJSON(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(req.Header.Get("Accept"), "application/json")
}
