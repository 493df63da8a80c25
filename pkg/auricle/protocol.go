package auricle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "auricle/v1"

// CommandEnvelope is the common client command envelope for MQTT.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required envelope fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	return nil
}

// TopicState is the retained canonical player state topic.
func TopicState(topicBase string) string {
	return fmt.Sprintf("%s/player/state", topicBase)
}

// TopicQueue is the retained play queue topic.
func TopicQueue(topicBase string) string {
	return fmt.Sprintf("%s/player/queue", topicBase)
}

// TopicCommands is the player command topic.
func TopicCommands(topicBase string) string {
	return fmt.Sprintf("%s/player/cmd", topicBase)
}

// TopicToast is the transient notification topic.
func TopicToast(topicBase string) string {
	return fmt.Sprintf("%s/player/toast", topicBase)
}

// TopicReply builds the reply topic for a client instance.
func TopicReply(topicBase, clientID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, clientID)
}
