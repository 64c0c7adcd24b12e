package models

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"terminus/internal/api"
)

const workflowFailedMessage = "The workflow failed."

// WorkflowAttributes is the API representation of a workflow.
type WorkflowAttributes struct {
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	Description       string     `json:"description"`
	ActiveDescription string     `json:"active_description"`
	Result            string     `json:"result"`
	FinishedAt        *float64   `json:"finished_at"`
	FinalTask         *FinalTask `json:"final_task"`
}

// FinalTask describes the last task a workflow ran.
type FinalTask struct {
	Reason   string                 `json:"reason"`
	Messages map[string]TaskMessage `json:"messages"`
}

type TaskMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Workflow is a transient handle on a remote, asynchronously processed job.
type Workflow struct {
	client *api.Client
	siteID string
	attrs  WorkflowAttributes
}

func (w *Workflow) ID() string {
	return w.attrs.ID
}

// Refresh reloads the workflow from the API.
func (w *Workflow) Refresh(ctx context.Context) error {
	var attrs WorkflowAttributes
	path := fmt.Sprintf("sites/%s/workflows/%s", url.PathEscape(w.siteID), url.PathEscape(w.attrs.ID))
	if err := w.client.Get(ctx, path, &attrs); err != nil {
		return fmt.Errorf("failed to refresh workflow %s: %w", w.attrs.ID, err)
	}
	w.attrs = attrs
	return nil
}

func (w *Workflow) IsFinished() bool {
	return w.attrs.Result != ""
}

func (w *Workflow) IsSuccessful() bool {
	return w.attrs.Result == "succeeded"
}

// Message is the human-readable outcome of the workflow.
func (w *Workflow) Message() string {
	if w.IsSuccessful() {
		if w.attrs.ActiveDescription != "" {
			return w.attrs.ActiveDescription
		}
		return w.attrs.Description
	}

	task := w.attrs.FinalTask
	if task == nil {
		return workflowFailedMessage
	}
	if task.Reason != "" {
		return task.Reason
	}
	if len(task.Messages) > 0 {
		keys := make([]string, 0, len(task.Messages))
		for k := range task.Messages {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if msg := task.Messages[keys[len(keys)-1]].Message; msg != "" {
			return msg
		}
	}
	return workflowFailedMessage
}
