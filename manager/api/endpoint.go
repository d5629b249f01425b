package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/hyqf98/trainhub/manager"
	"github.com/hyqf98/trainhub/pkg/remote"
)

func makeCreateTaskEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(_ context.Context, request interface{}) (interface{}, error) {
		req := request.(createTaskRequestDTO)

		t, err := svc.CreateTask(req.Task)
		if err != nil {
			return nil, err
		}

		return taskResponseDTO{Task: t}, nil
	}
}

func makeGetTaskEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(_ context.Context, request interface{}) (interface{}, error) {
		req := request.(taskIDRequestDTO)

		t, err := svc.GetTask(req.TaskID)
		if err != nil {
			return nil, err
		}

		return taskResponseDTO{Task: t}, nil
	}
}

func makeListTasksEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(_ context.Context, _ interface{}) (interface{}, error) {
		tasks := svc.ListTasks()

		return listTasksResponseDTO{Tasks: tasks, Total: len(tasks)}, nil
	}
}

func makeUpdateTaskEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(_ context.Context, request interface{}) (interface{}, error) {
		req := request.(updateTaskRequestDTO)

		t, err := svc.UpdateTask(req.Task)
		if err != nil {
			return nil, err
		}

		return taskResponseDTO{Task: t}, nil
	}
}

func makeDeleteTaskEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(taskIDRequestDTO)

		if err := svc.DeleteTask(ctx, req.TaskID); err != nil {
			return nil, err
		}

		return okResponseDTO{TaskID: req.TaskID}, nil
	}
}

func makeStartTaskEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(taskIDRequestDTO)

		if err := svc.StartTask(ctx, req.TaskID); err != nil {
			return nil, err
		}

		return okResponseDTO{TaskID: req.TaskID}, nil
	}
}

func makeStopTaskEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(taskIDRequestDTO)

		if err := svc.StopTask(ctx, req.TaskID); err != nil {
			return nil, err
		}

		return okResponseDTO{TaskID: req.TaskID}, nil
	}
}

func makeCompleteTaskEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(_ context.Context, request interface{}) (interface{}, error) {
		req := request.(taskIDRequestDTO)

		if err := svc.MarkCompleted(req.TaskID); err != nil {
			return nil, err
		}

		return okResponseDTO{TaskID: req.TaskID}, nil
	}
}

func makeTaskLogEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(_ context.Context, request interface{}) (interface{}, error) {
		req := request.(taskIDRequestDTO)

		log, err := svc.TaskLog(req.TaskID)
		if err != nil {
			return nil, err
		}

		return taskLogResponseDTO{TaskID: req.TaskID, Log: log}, nil
	}
}

func makeCreateServerEndpoint(servers *remote.Store) endpoint.Endpoint {
	return func(_ context.Context, request interface{}) (interface{}, error) {
		req := request.(createServerRequestDTO)

		srv, err := servers.Add(req.Server)
		if err != nil {
			return nil, err
		}

		return serverResponseDTO{Server: srv}, nil
	}
}

func makeListServersEndpoint(servers *remote.Store) endpoint.Endpoint {
	return func(_ context.Context, _ interface{}) (interface{}, error) {
		all := servers.GetAll()

		return listServersResponseDTO{Servers: all, Total: len(all)}, nil
	}
}

func makeDeleteServerEndpoint(servers *remote.Store) endpoint.Endpoint {
	return func(_ context.Context, request interface{}) (interface{}, error) {
		req := request.(serverIDRequestDTO)

		if err := servers.Delete(req.ServerID); err != nil {
			return nil, err
		}

		return serverOKResponseDTO{ServerID: req.ServerID}, nil
	}
}
