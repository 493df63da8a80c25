package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/internal/player"
	"github.com/auricle-audio/auricle/pkg/auricle"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Config configures the broadcast gateway.
type Config struct {
	TopicBase string
}

// Module bridges the player core onto MQTT: it consumes command
// envelopes, replies per request, and fans complete state and queue
// snapshots out on retained topics so late subscribers converge
// immediately.
type Module struct {
	log      *zap.Logger
	client   mqttClient
	machine  *player.Machine
	config   Config
	cmdTopic string
}

// NewModule creates the gateway.
func NewModule(log *zap.Logger, client mqttClient, machine *player.Machine, cfg Config) *Module {
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = auricle.BaseTopic
	}
	return &Module{
		log:      log,
		client:   client,
		machine:  machine,
		config:   cfg,
		cmdTopic: auricle.TopicCommands(cfg.TopicBase),
	}
}

// Run subscribes for commands and publishes the initial snapshots.
func (m *Module) Run(ctx context.Context) error {
	m.machine.SetBroadcaster(m)
	m.PushState(m.machine.GetState())
	m.PushQueue(m.machine.GetQueue())

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(ctx, msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	<-ctx.Done()
	return nil
}

// PushState publishes the canonical snapshot, retained.
func (m *Module) PushState(state auricle.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		m.log.Warn("cannot marshal state", zap.Error(err))
		return
	}
	if err := m.client.Publish(auricle.TopicState(m.config.TopicBase), 1, true, payload); err != nil {
		m.log.Warn("cannot publish state", zap.Error(err))
	}
}

// PushQueue publishes the full queue, retained.
func (m *Module) PushQueue(items []auricle.Track) {
	payload, err := json.Marshal(auricle.QueueGetReply{Items: items})
	if err != nil {
		m.log.Warn("cannot marshal queue", zap.Error(err))
		return
	}
	if err := m.client.Publish(auricle.TopicQueue(m.config.TopicBase), 1, true, payload); err != nil {
		m.log.Warn("cannot publish queue", zap.Error(err))
	}
}

// PushToast publishes a transient notification, not retained.
func (m *Module) PushToast(kind, title, message string) {
	toast := auricle.Toast{Kind: kind, Title: title, Message: message, TS: time.Now().Unix()}
	payload, err := json.Marshal(toast)
	if err != nil {
		return
	}
	if err := m.client.Publish(auricle.TopicToast(m.config.TopicBase), 0, false, payload); err != nil {
		m.log.Warn("cannot publish toast", zap.Error(err))
	}
}

func (m *Module) handleMessage(ctx context.Context, msg paho.Message) {
	var cmd auricle.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command payload", zap.Error(err))
		return
	}
	if err := auricle.ValidateCommandEnvelope(cmd); err != nil {
		m.log.Warn("malformed command", zap.String("type", cmd.Type), zap.Error(err))
		m.publishReply(cmd.ReplyTo, errorReply(cmd, "INVALID", err.Error()))
		return
	}

	reply := m.dispatch(ctx, cmd)
	m.publishReply(cmd.ReplyTo, reply)
}

func (m *Module) dispatch(ctx context.Context, cmd auricle.CommandEnvelope) auricle.ReplyEnvelope {
	reply := auricle.ReplyEnvelope{ID: cmd.ID, Type: "ack", OK: true, TS: time.Now().Unix()}

	switch cmd.Type {
	case "playback.play":
		var body auricle.PlaybackPlayBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		if err := m.machine.Play(ctx, body.Index); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "playback.pause":
		if err := m.machine.Pause(ctx); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "playback.stop":
		if err := m.machine.Stop(ctx); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "playback.toggle":
		if err := m.machine.Toggle(ctx); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "playback.next":
		var body auricle.PlaybackSkipBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		if err := m.machine.Next(ctx, body.Manual); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "playback.prev":
		var body auricle.PlaybackSkipBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		if err := m.machine.Previous(ctx, body.Manual); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "playback.seek":
		var body auricle.PlaybackSeekBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		if err := m.machine.Seek(ctx, body.PositionMS); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "playback.ffwdRew":
		var body auricle.PlaybackFFWDRewBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		if err := m.machine.FFWDRew(ctx, body.DeltaMS); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "playback.setVolume":
		var body auricle.PlaybackSetVolumeBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.UpdateVolume(&body.Volume, body.Mute)
		return reply

	case "playback.setRandom":
		var body auricle.SetRandomBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.SetRandom(body.Value)
		return reply

	case "playback.setRepeat":
		var body auricle.SetRepeatBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.SetRepeat(body.Repeat, body.RepeatSingle)
		return reply

	case "playback.setConsume":
		var body auricle.SetConsumeBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.SetConsume(body.Value)
		return reply

	case "playback.toggleRandomRepeat":
		m.machine.ToggleRandomRepeat()
		return reply

	case "playback.toggleStopAfterCurrent":
		m.machine.ToggleStopAfterCurrent()
		return reply

	case "queue.add":
		var body auricle.QueueAddBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		index := m.machine.AddQueueItems(ctx, body.Items)
		return withBody(reply, auricle.QueueAddReply{FirstItemIndex: index})

	case "queue.addPlay":
		var body auricle.QueueAddBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		if err := m.machine.AddPlay(ctx, body.Items); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "queue.replacePlay":
		var body auricle.QueueAddBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		if err := m.machine.ReplaceAndPlay(ctx, body.Items); err != nil {
			return errorReply(cmd, "PLAYBACK", err.Error())
		}
		return reply

	case "queue.playNext":
		var body auricle.QueuePlayNextBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.PlayNext(ctx, body.Item)
		return reply

	case "queue.remove":
		var body auricle.QueueRemoveBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.RemoveQueueItem(body.Index)
		return reply

	case "queue.removeAfter":
		var body auricle.QueueRemoveAfterBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.RemoveItemsAfterIndex(body.Index)
		return reply

	case "queue.move":
		var body auricle.QueueMoveBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.MoveQueueItem(body.From, body.To)
		return reply

	case "queue.clear":
		var body auricle.QueueClearBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.ClearQueue(body.EmitEmptyState)
		return reply

	case "queue.preload":
		var body auricle.QueuePreloadBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, "INVALID", "invalid body")
		}
		m.machine.PreloadItems(body.Items)
		return reply

	case "queue.preloadStop":
		m.machine.PreloadItemsStop()
		return reply

	case "queue.get":
		return withBody(reply, auricle.QueueGetReply{Items: m.machine.GetQueue()})

	case "state.get":
		return withBody(reply, auricle.StateGetReply{State: m.machine.GetState()})

	default:
		return errorReply(cmd, "UNSUPPORTED", "unknown command type "+cmd.Type)
	}
}

func (m *Module) publishReply(replyTo string, reply auricle.ReplyEnvelope) {
	if replyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := m.client.Publish(replyTo, 1, false, payload); err != nil {
		m.log.Warn("cannot publish reply", zap.Error(err))
	}
}

func withBody(reply auricle.ReplyEnvelope, body any) auricle.ReplyEnvelope {
	payload, err := json.Marshal(body)
	if err != nil {
		return reply
	}
	reply.Body = payload
	return reply
}

func errorReply(cmd auricle.CommandEnvelope, code, message string) auricle.ReplyEnvelope {
	return auricle.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   time.Now().Unix(),
		Err:  &auricle.ReplyError{Code: code, Message: message},
	}
}
