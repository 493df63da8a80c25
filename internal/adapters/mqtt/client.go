package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// Options configures the MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLSCA     string
	TLSCert   string
	TLSKey    string
	TopicBase string
	Timeout   time.Duration
}

// Client is an MQTT adapter implementing the Broker port.
type Client struct {
	client     paho.Client
	replyTopic string
	topicBase  string
	timeout    time.Duration

	mu            sync.Mutex
	replyHandlers map[string]chan auricle.ReplyEnvelope
}

// NewClient creates and connects an MQTT client.
func NewClient(opts Options) (*Client, error) {
	if opts.TopicBase == "" {
		opts.TopicBase = auricle.BaseTopic
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}

	c := &Client{
		replyTopic:    auricle.TopicReply(opts.TopicBase, opts.ClientID),
		topicBase:     opts.TopicBase,
		timeout:       opts.Timeout,
		replyHandlers: map[string]chan auricle.ReplyEnvelope{},
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(c.replyTopic, 1, c.handleReply)
		token.Wait()
	})

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	tlsConfig, err := buildTLSConfig(opts.TLSCA, opts.TLSCert, opts.TLSKey)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(clientOpts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := c.client.Subscribe(c.replyTopic, 1, c.handleReply); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return c, nil
}

// ReplyTopic returns the topic used for replies.
func (c *Client) ReplyTopic() string {
	return c.replyTopic
}

// PublishCommand publishes a command and waits for a reply.
func (c *Client) PublishCommand(ctx context.Context, cmd auricle.CommandEnvelope) (auricle.ReplyEnvelope, error) {
	req, err := json.Marshal(cmd)
	if err != nil {
		return auricle.ReplyEnvelope{}, fmt.Errorf("marshal command: %w", err)
	}

	replyCh := make(chan auricle.ReplyEnvelope, 1)
	c.mu.Lock()
	c.replyHandlers[cmd.ID] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.replyHandlers, cmd.ID)
		c.mu.Unlock()
	}()

	topic := auricle.TopicCommands(c.topicBase)
	if token := c.client.Publish(topic, 1, false, req); token.Wait() && token.Error() != nil {
		return auricle.ReplyEnvelope{}, token.Error()
	}

	select {
	case <-ctx.Done():
		return auricle.ReplyEnvelope{}, ctx.Err()
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(c.timeout):
		return auricle.ReplyEnvelope{}, errors.New("timeout waiting for reply")
	}
}

// GetState returns the retained player state.
func (c *Client) GetState(ctx context.Context) (auricle.State, error) {
	stateCh := make(chan auricle.State, 1)
	handler := func(_ paho.Client, msg paho.Message) {
		var state auricle.State
		if err := json.Unmarshal(msg.Payload(), &state); err != nil {
			return
		}
		select {
		case stateCh <- state:
		default:
		}
	}

	topic := auricle.TopicState(c.topicBase)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return auricle.State{}, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	select {
	case <-ctx.Done():
		return auricle.State{}, ctx.Err()
	case state := <-stateCh:
		return state, nil
	case <-time.After(c.timeout):
		return auricle.State{}, errors.New("timeout waiting for state")
	}
}

// GetQueue returns the retained queue snapshot.
func (c *Client) GetQueue(ctx context.Context) ([]auricle.Track, error) {
	queueCh := make(chan []auricle.Track, 1)
	handler := func(_ paho.Client, msg paho.Message) {
		var body auricle.QueueGetReply
		if err := json.Unmarshal(msg.Payload(), &body); err != nil {
			return
		}
		select {
		case queueCh <- body.Items:
		default:
		}
	}

	topic := auricle.TopicQueue(c.topicBase)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case items := <-queueCh:
		return items, nil
	case <-time.After(c.timeout):
		return nil, errors.New("timeout waiting for queue")
	}
}

// WatchPlayer streams state snapshots and toast notifications.
func (c *Client) WatchPlayer(ctx context.Context) (<-chan auricle.State, <-chan auricle.Toast, <-chan error) {
	stateCh := make(chan auricle.State, 8)
	toastCh := make(chan auricle.Toast, 8)
	errCh := make(chan error, 1)

	stateHandler := func(_ paho.Client, msg paho.Message) {
		var state auricle.State
		if err := json.Unmarshal(msg.Payload(), &state); err != nil {
			return
		}
		select {
		case stateCh <- state:
		default:
		}
	}

	toastHandler := func(_ paho.Client, msg paho.Message) {
		var toast auricle.Toast
		if err := json.Unmarshal(msg.Payload(), &toast); err != nil {
			return
		}
		select {
		case toastCh <- toast:
		default:
		}
	}

	stateTopic := auricle.TopicState(c.topicBase)
	toastTopic := auricle.TopicToast(c.topicBase)

	if token := c.client.Subscribe(stateTopic, 1, stateHandler); token.Wait() && token.Error() != nil {
		errCh <- token.Error()
		return stateCh, toastCh, errCh
	}
	if token := c.client.Subscribe(toastTopic, 0, toastHandler); token.Wait() && token.Error() != nil {
		errCh <- token.Error()
		return stateCh, toastCh, errCh
	}

	go func() {
		<-ctx.Done()
		c.client.Unsubscribe(stateTopic, toastTopic)
		close(stateCh)
		close(toastCh)
		close(errCh)
	}()

	return stateCh, toastCh, errCh
}

func (c *Client) handleReply(_ paho.Client, msg paho.Message) {
	var reply auricle.ReplyEnvelope
	if err := json.Unmarshal(msg.Payload(), &reply); err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.replyHandlers[reply.ID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- reply:
	default:
	}
}

func buildTLSConfig(caPath, certPath, keyPath string) (*tls.Config, error) {
	if caPath == "" && certPath == "" && keyPath == "" {
		return nil, nil
	}

	config := &tls.Config{}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse CA bundle")
		}
		config.RootCAs = pool
	}

	if certPath != "" || keyPath != "" {
		if certPath == "" || keyPath == "" {
			return nil, errors.New("both tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}
