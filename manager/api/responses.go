package api

import (
	"github.com/hyqf98/trainhub/pkg/remote"
	"github.com/hyqf98/trainhub/task"
)

type taskResponseDTO struct {
	Task task.Task `json:"task"`
}

type listTasksResponseDTO struct {
	Tasks []task.Task `json:"tasks"`
	Total int         `json:"total"`
}

type taskLogResponseDTO struct {
	TaskID int    `json:"task_id"`
	Log    string `json:"log"`
}

type okResponseDTO struct {
	TaskID int `json:"task_id"`
}

type serverResponseDTO struct {
	Server remote.Server `json:"server"`
}

type listServersResponseDTO struct {
	Servers []remote.Server `json:"servers"`
	Total   int             `json:"total"`
}

type serverOKResponseDTO struct {
	ServerID int `json:"server_id"`
}
