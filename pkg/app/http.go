package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nergy-se/controlkit/pkg/version"
	"github.com/sirupsen/logrus"
)

func (a *App) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.handleHealth).Methods("GET")
	r.HandleFunc("/components", a.handleComponents).Methods("GET")
	r.HandleFunc("/components/{id}", a.handleComponent).Methods("GET")
	r.HandleFunc("/alarms", a.handleAlarms).Methods("GET")
	r.Handle("/metrics", a.metrics.Handler()).Methods("GET")

	return r
}

func (a *App) startHTTP(ctx context.Context, address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		err := srv.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("status server stopped: %s", err)
		}
	}()
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			logrus.Errorf("error shutting down status server: %s", err)
		}
	}()
	logrus.Infof("status server listening on %s", l.Addr())
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logrus.Errorf("error encoding response: %s", err)
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": version.Build,
	}
	if alarms := a.alarms.List(); len(alarms) > 0 {
		body["status"] = "degraded"
		body["alarms"] = len(alarms)
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *App) handleComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.state.List())
}

func (a *App) handleComponent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, ok := a.state.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "component " + id + " not found"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *App) handleAlarms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.alarms.List())
}
