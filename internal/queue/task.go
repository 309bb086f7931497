package queue

import (
	"encoding/json"
	"fmt"
)

const (
	TaskSendEmail = "send_email"
	TaskCleanup   = "cleanup"
)

const (
	TemplatePasswordReset     = "password_reset"
	TemplateEmailVerification = "email_verification"
)

// Task is one unit of background work. Fields are flat strings so they map
// directly onto stream entry values.
type Task struct {
	Type     string `json:"type"`
	Template string `json:"template,omitempty"`
	To       string `json:"to,omitempty"`
	Name     string `json:"name,omitempty"`
	Link     string `json:"link,omitempty"`
}

func (t Task) values() map[string]any {
	v := map[string]any{"type": t.Type}
	if t.Template != "" {
		v["template"] = t.Template
	}
	if t.To != "" {
		v["to"] = t.To
	}
	if t.Name != "" {
		v["name"] = t.Name
	}
	if t.Link != "" {
		v["link"] = t.Link
	}
	return v
}

func DecodeTask(values map[string]interface{}) (Task, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return Task{}, err
	}
	if task.Type == "" {
		return Task{}, fmt.Errorf("task without type")
	}
	return task, nil
}
