package notification

import (
	"encoding/json"
	"time"

	"engagement-controlplane/pkg/taskname"
	"engagement-controlplane/services/marketplace"

	"github.com/hibiken/asynq"
)

type ButtonPayload struct {
	Label    string `json:"label"`
	Callback string `json:"callback"`
}

type DeliverPayload struct {
	To       int64           `json:"to"`
	Text     string          `json:"text"`
	PhotoRef string          `json:"photo_ref,omitempty"`
	Buttons  []ButtonPayload `json:"buttons,omitempty"`
	TraceID  string          `json:"trace_id,omitempty"`
}

func PayloadFromMessage(m marketplace.Message, traceID string) DeliverPayload {
	p := DeliverPayload{
		To:       m.To,
		Text:     m.Text,
		PhotoRef: m.PhotoRef,
		TraceID:  traceID,
	}
	for _, b := range m.Buttons {
		p.Buttons = append(p.Buttons, ButtonPayload{Label: b.Label, Callback: b.Callback})
	}
	return p
}

func NewDeliverTask(p DeliverPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.NotificationDeliver, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Queue(taskname.QueueNotifications)), nil
}
