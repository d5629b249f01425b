package api

import (
	"github.com/hyqf98/trainhub/pkg/remote"
	"github.com/hyqf98/trainhub/task"
)

type taskIDRequestDTO struct {
	TaskID int
}

type serverIDRequestDTO struct {
	ServerID int
}

type createServerRequestDTO struct {
	Server remote.Server
}

type createTaskRequestDTO struct {
	Task task.Task
}

type updateTaskRequestDTO struct {
	Task task.Task
}
