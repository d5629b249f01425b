package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyqf98/trainhub/pkg/remote"
	"github.com/hyqf98/trainhub/task"
)

const requestTimeout = 30 * time.Second

// Client is a thin wrapper over the manager's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type taskEnvelope struct {
	Task task.Task `json:"task"`
}

type taskListEnvelope struct {
	Tasks []task.Task `json:"tasks"`
	Total int         `json:"total"`
}

type taskLogEnvelope struct {
	TaskID int    `json:"task_id"`
	Log    string `json:"log"`
}

type serverEnvelope struct {
	Server remote.Server `json:"server"`
}

type serverListEnvelope struct {
	Servers []remote.Server `json:"servers"`
	Total   int             `json:"total"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func (c *Client) do(method, route string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+route, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error reaching manager at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}

		return fmt.Errorf("manager returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) CreateTask(t task.Task) (task.Task, error) {
	var env taskEnvelope
	if err := c.do(http.MethodPost, "/tasks", t, &env); err != nil {
		return task.Task{}, err
	}

	return env.Task, nil
}

func (c *Client) GetTask(id int) (task.Task, error) {
	var env taskEnvelope
	if err := c.do(http.MethodGet, fmt.Sprintf("/tasks/%d", id), nil, &env); err != nil {
		return task.Task{}, err
	}

	return env.Task, nil
}

func (c *Client) ListTasks() ([]task.Task, error) {
	var env taskListEnvelope
	if err := c.do(http.MethodGet, "/tasks", nil, &env); err != nil {
		return nil, err
	}

	return env.Tasks, nil
}

func (c *Client) UpdateTask(t task.Task) (task.Task, error) {
	var env taskEnvelope
	if err := c.do(http.MethodPut, fmt.Sprintf("/tasks/%d", t.ID), t, &env); err != nil {
		return task.Task{}, err
	}

	return env.Task, nil
}

func (c *Client) DeleteTask(id int) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil)
}

func (c *Client) StartTask(id int) error {
	return c.do(http.MethodPost, fmt.Sprintf("/tasks/%d/start", id), nil, nil)
}

func (c *Client) StopTask(id int) error {
	return c.do(http.MethodPost, fmt.Sprintf("/tasks/%d/stop", id), nil, nil)
}

func (c *Client) CompleteTask(id int) error {
	return c.do(http.MethodPost, fmt.Sprintf("/tasks/%d/complete", id), nil, nil)
}

func (c *Client) TaskLog(id int) (string, error) {
	var env taskLogEnvelope
	if err := c.do(http.MethodGet, fmt.Sprintf("/tasks/%d/logs", id), nil, &env); err != nil {
		return "", err
	}

	return env.Log, nil
}

func (c *Client) CreateServer(s remote.Server) (remote.Server, error) {
	var env serverEnvelope
	if err := c.do(http.MethodPost, "/servers", s, &env); err != nil {
		return remote.Server{}, err
	}

	return env.Server, nil
}

func (c *Client) ListServers() ([]remote.Server, error) {
	var env serverListEnvelope
	if err := c.do(http.MethodGet, "/servers", nil, &env); err != nil {
		return nil, err
	}

	return env.Servers, nil
}

func (c *Client) DeleteServer(id int) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/servers/%d", id), nil, nil)
}
