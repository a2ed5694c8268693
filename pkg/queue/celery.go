// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"gitlab.com/tozd/go/errors"
)

const contentType = "application/json"

// ErrMalformed marks a delivery that cannot be read as a task message
var ErrMalformed = errors.New("malformed task message")

// 📨 Message is one Celery task invocation
type Message struct {
	ID     string
	Task   string
	Args   []json.RawMessage
	Kwargs map[string]json.RawMessage
}

// embed is the third element of a protocol 2 body
type embed struct {
	Callbacks any `json:"callbacks"`
	Errbacks  any `json:"errbacks"`
	Chain     any `json:"chain"`
	Chord     any `json:"chord"`
}

// protocol 1 carried everything in the body
type legacyBody struct {
	ID     string                     `json:"id"`
	Task   string                     `json:"task"`
	Args   []json.RawMessage          `json:"args"`
	Kwargs map[string]json.RawMessage `json:"kwargs"`
}

// 🏭 NewMessage builds a message for task with a fresh id
func NewMessage(task string, args ...any) (*Message, error) {
	if task == "" {
		return nil, errors.New("task is required")
	}
	msg := &Message{
		ID:     uuid.NewString(),
		Task:   task,
		Kwargs: map[string]json.RawMessage{},
	}
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, errors.Errorf("encoding arg %d of %s: %w", i, task, err)
		}
		msg.Args = append(msg.Args, raw)
	}
	return msg, nil
}

// Arg decodes positional argument i into v
func (m *Message) Arg(i int, v any) error {
	if i >= len(m.Args) {
		return errors.Errorf("%w: %s has %d args, wanted index %d", ErrMalformed, m.Task, len(m.Args), i)
	}
	if err := json.Unmarshal(m.Args[i], v); err != nil {
		return errors.Errorf("%w: decoding arg %d of %s: %s", ErrMalformed, i, m.Task, err.Error())
	}
	return nil
}

// 📦 Encode renders a protocol 2 publishing
func Encode(msg *Message) (amqp.Publishing, error) {
	args := msg.Args
	if args == nil {
		args = []json.RawMessage{}
	}
	kwargs := msg.Kwargs
	if kwargs == nil {
		kwargs = map[string]json.RawMessage{}
	}

	body, err := json.Marshal([]any{args, kwargs, embed{}})
	if err != nil {
		return amqp.Publishing{}, errors.Errorf("encoding body of %s: %w", msg.Task, err)
	}

	argsRepr, _ := json.Marshal(args)
	kwargsRepr, _ := json.Marshal(kwargs)

	return amqp.Publishing{
		ContentType:     contentType,
		ContentEncoding: "utf-8",
		CorrelationId:   msg.ID,
		MessageId:       msg.ID,
		DeliveryMode:    amqp.Persistent,
		Timestamp:       time.Now().UTC(),
		Headers: amqp.Table{
			"lang":       "go",
			"task":       msg.Task,
			"id":         msg.ID,
			"root_id":    msg.ID,
			"parent_id":  nil,
			"group":      nil,
			"retries":    int32(0),
			"eta":        nil,
			"expires":    nil,
			"timelimit":  []any{nil, nil},
			"argsrepr":   string(argsRepr),
			"kwargsrepr": string(kwargsRepr),
			"origin":     "drsholding",
		},
		Body: body,
	}, nil
}

// 🔍 Decode reads a delivery in either Celery protocol
func Decode(d amqp.Delivery) (*Message, error) {
	if d.ContentType != "" && d.ContentType != contentType {
		return nil, errors.Errorf("%w: unsupported content type %q", ErrMalformed, d.ContentType)
	}

	task, _ := d.Headers["task"].(string)
	if task == "" {
		return decodeLegacy(d.Body)
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(d.Body, &parts); err != nil {
		return nil, errors.Errorf("%w: body of %s is not a json array: %s", ErrMalformed, task, err.Error())
	}
	if len(parts) < 2 {
		return nil, errors.Errorf("%w: body of %s has %d parts", ErrMalformed, task, len(parts))
	}

	msg := &Message{Task: task, ID: headerString(d.Headers, "id")}
	if msg.ID == "" {
		msg.ID = d.CorrelationId
	}
	if err := json.Unmarshal(parts[0], &msg.Args); err != nil {
		return nil, errors.Errorf("%w: args of %s: %s", ErrMalformed, task, err.Error())
	}
	if err := json.Unmarshal(parts[1], &msg.Kwargs); err != nil {
		return nil, errors.Errorf("%w: kwargs of %s: %s", ErrMalformed, task, err.Error())
	}
	return msg, nil
}

func decodeLegacy(body []byte) (*Message, error) {
	var b legacyBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, errors.Errorf("%w: no task header and body is not a task: %s", ErrMalformed, err.Error())
	}
	if b.Task == "" {
		return nil, errors.Errorf("%w: no task name", ErrMalformed)
	}
	return &Message{ID: b.ID, Task: b.Task, Args: b.Args, Kwargs: b.Kwargs}, nil
}

func headerString(h amqp.Table, key string) string {
	switch v := h[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
