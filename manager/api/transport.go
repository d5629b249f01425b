// Package api exposes the task manager over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hyqf98/trainhub/manager"
	"github.com/hyqf98/trainhub/pkg/orchestration"
	"github.com/hyqf98/trainhub/pkg/remote"
	"github.com/hyqf98/trainhub/task"
)

func MakeHandler(svc manager.Service, servers *remote.Store) http.Handler {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
	}

	mux := chi.NewRouter()

	mux.Route("/tasks", func(r chi.Router) {
		r.Post("/", kithttp.NewServer(
			makeCreateTaskEndpoint(svc),
			decodeCreateTaskRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Get("/", kithttp.NewServer(
			makeListTasksEndpoint(svc),
			decodeEmptyRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Get("/{task_id}", kithttp.NewServer(
			makeGetTaskEndpoint(svc),
			decodeTaskIDRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Put("/{task_id}", kithttp.NewServer(
			makeUpdateTaskEndpoint(svc),
			decodeUpdateTaskRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Delete("/{task_id}", kithttp.NewServer(
			makeDeleteTaskEndpoint(svc),
			decodeTaskIDRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Post("/{task_id}/start", kithttp.NewServer(
			makeStartTaskEndpoint(svc),
			decodeTaskIDRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Post("/{task_id}/stop", kithttp.NewServer(
			makeStopTaskEndpoint(svc),
			decodeTaskIDRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Post("/{task_id}/complete", kithttp.NewServer(
			makeCompleteTaskEndpoint(svc),
			decodeTaskIDRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Get("/{task_id}/logs", kithttp.NewServer(
			makeTaskLogEndpoint(svc),
			decodeTaskIDRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
	})

	mux.Route("/servers", func(r chi.Router) {
		r.Post("/", kithttp.NewServer(
			makeCreateServerEndpoint(servers),
			decodeCreateServerRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Get("/", kithttp.NewServer(
			makeListServersEndpoint(servers),
			decodeEmptyRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Delete("/{server_id}", kithttp.NewServer(
			makeDeleteServerEndpoint(servers),
			decodeServerIDRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(mux, "trainhub-api")
}

func decodeEmptyRequest(_ context.Context, _ *http.Request) (interface{}, error) {
	return nil, nil
}

func decodeTaskIDRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "task_id"))
	if err != nil {
		return nil, errors.New("task_id must be an integer")
	}

	return taskIDRequestDTO{TaskID: id}, nil
}

func decodeCreateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil, errors.New("unsupported content type")
	}

	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		return nil, err
	}

	return createTaskRequestDTO{Task: t}, nil
}

func decodeUpdateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil, errors.New("unsupported content type")
	}

	id, err := strconv.Atoi(chi.URLParam(r, "task_id"))
	if err != nil {
		return nil, errors.New("task_id must be an integer")
	}

	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		return nil, err
	}
	t.ID = id

	return updateTaskRequestDTO{Task: t}, nil
}

func decodeServerIDRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "server_id"))
	if err != nil {
		return nil, errors.New("server_id must be an integer")
	}

	return serverIDRequestDTO{ServerID: id}, nil
}

func decodeCreateServerRequest(_ context.Context, r *http.Request) (interface{}, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil, errors.New("unsupported content type")
	}

	var srv remote.Server
	if err := json.NewDecoder(r.Body).Decode(&srv); err != nil {
		return nil, err
	}

	return createServerRequestDTO{Server: srv}, nil
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	return json.NewEncoder(w).Encode(response)
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, remote.ErrServerNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, orchestration.ErrTaskActive),
		errors.Is(err, orchestration.ErrInvalidStateTransition):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, orchestration.ErrDatasetMissing),
		errors.Is(err, orchestration.ErrEnvironmentMissing):
		w.WriteHeader(http.StatusUnprocessableEntity)
	case errors.Is(err, orchestration.ErrConnectionFailed):
		w.WriteHeader(http.StatusBadGateway)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
