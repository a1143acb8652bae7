// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus is the middleware link to the flight controller bridge over
// MQTT: feed subscriptions, fire-and-forget publications and a
// request/response layer for the command services.
//
// All topic and service names handed to the bus are relative; the bus puts
// the configured prefix in front ("mavros" + "state" -> "mavros/state").
//
// A service call publishes an envelope {id, reply_to, body} to
// "<prefix>/<service>/request" and waits for {id, body} on this client's
// reply topic.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	// ErrNotConnected is returned when publishing while the broker link is down.
	ErrNotConnected = errors.New("bus: not connected to broker")
	// ErrTimeout is returned by Call when no response arrives within the call timeout.
	ErrTimeout = errors.New("bus: service call timed out")
)

// RemoteError is a failure reported by the service responder.
type RemoteError struct {
	Service string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bus: service %s: %s", e.Service, e.Message)
}

// Options configures a Bus.
type Options struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	Prefix      string // e.g. mavros
	QoS         byte
	CallTimeout time.Duration // zero waits for ctx only
	Codec       Codec         // nil means JSON
	Logger      *slog.Logger
}

type envelope struct {
	ID      string `json:"id" msgpack:"id"`
	ReplyTo string `json:"reply_to,omitempty" msgpack:"reply_to,omitempty"`
	Error   string `json:"error,omitempty" msgpack:"error,omitempty"`
	Body    any    `json:"body,omitempty" msgpack:"body,omitempty"`
}

// Bus is safe for concurrent use.
type Bus struct {
	client     mqtt.Client
	opts       Options
	codec      Codec
	log        *slog.Logger
	replyTopic string

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[string]chan []byte

	subMu sync.Mutex
	subs  []subscription
}

// subscription is re-issued on every reconnect; the broker forgets it when a
// clean session drops.
type subscription struct {
	topic   string
	handler mqtt.MessageHandler
}

// Connect dials the broker and returns a ready Bus. After an automatic
// reconnect every subscription made through the Bus is restored.
func Connect(opts Options) (*Bus, error) {
	var ready atomic.Pointer[Bus]
	client := mqtt.NewClient(clientOptions(opts, &ready))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Broker, token.Error())
	}

	b, err := New(client, opts)
	if err != nil {
		client.Disconnect(250)
		return nil, err
	}
	ready.Store(b)
	b.log.Info("connected to MQTT broker", "broker", opts.Broker, "client_id", opts.ClientID)
	return b, nil
}

func clientOptions(opts Options, ready *atomic.Pointer[Bus]) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(c mqtt.Client) {
			// nil on the first connect; New subscribes itself.
			if b := ready.Load(); b != nil {
				b.resubscribe(c)
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			if b := ready.Load(); b != nil {
				b.log.Warn("broker connection lost", "error", err)
			}
		})
}

// New wraps an already connected client and subscribes to this client's
// reply topic.
func New(client mqtt.Client, opts Options) (*Bus, error) {
	if opts.Codec == nil {
		opts.Codec = JSON
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &Bus{
		client:  client,
		opts:    opts,
		codec:   opts.Codec,
		log:     opts.Logger.With("component", "bus"),
		pending: make(map[string]chan []byte),
	}
	b.replyTopic = b.Topic("reply/" + opts.ClientID)

	if err := b.subscribe(b.replyTopic, func(_ mqtt.Client, msg mqtt.Message) {
		b.handleReply(msg.Payload())
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// Topic returns the absolute topic for a relative name.
func (b *Bus) Topic(name string) string {
	if b.opts.Prefix == "" {
		return name
	}
	return b.opts.Prefix + "/" + name
}

// Codec returns the payload codec in use.
func (b *Bus) Codec() Codec { return b.codec }

// Decode unmarshals a payload received through Subscribe.
func (b *Bus) Decode(payload []byte, v any) error {
	return b.codec.Unmarshal(payload, v)
}

// Publish encodes v and sends it on the relative topic name without waiting
// for any acknowledgement from the receiver.
func (b *Bus) Publish(name string, v any) error {
	return b.publish(b.Topic(name), v, false)
}

// PublishRetained is Publish with the broker's retain flag set, so late
// subscribers get the last value immediately.
func (b *Bus) PublishRetained(name string, v any) error {
	return b.publish(b.Topic(name), v, true)
}

func (b *Bus) publish(topic string, v any, retained bool) error {
	payload, err := b.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return b.publishRaw(topic, payload, retained)
}

func (b *Bus) publishRaw(topic string, payload []byte, retained bool) error {
	if !b.client.IsConnected() {
		return ErrNotConnected
	}
	token := b.client.Publish(topic, b.opts.QoS, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// Subscribe registers handler for the relative topic name. Messages on one
// topic are delivered in arrival order.
func (b *Bus) Subscribe(name string, handler func(payload []byte)) error {
	topic := b.Topic(name)
	if err := b.subscribe(topic, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	}); err != nil {
		return err
	}
	b.log.Debug("subscribed", "topic", topic)
	return nil
}

func (b *Bus) subscribe(topic string, handler mqtt.MessageHandler) error {
	token := b.client.Subscribe(topic, b.opts.QoS, handler)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	b.subMu.Lock()
	b.subs = append(b.subs, subscription{topic, handler})
	b.subMu.Unlock()
	return nil
}

// resubscribe re-issues every recorded subscription on c, the reply topic
// included. Failures are logged; the remaining topics are still tried.
func (b *Bus) resubscribe(c mqtt.Client) {
	b.subMu.Lock()
	subs := append([]subscription(nil), b.subs...)
	b.subMu.Unlock()

	restored := 0
	for _, s := range subs {
		token := c.Subscribe(s.topic, b.opts.QoS, s.handler)
		token.Wait()
		if err := token.Error(); err != nil {
			b.log.Error("resubscribe failed", "topic", s.topic, "error", err)
			continue
		}
		restored++
	}
	b.log.Info("reconnected to MQTT broker", "subscriptions", restored)
}

// Call sends req to service and decodes the answer into resp. It returns
// when the response arrives, ctx is done, or the call timeout expires.
func (b *Bus) Call(ctx context.Context, service string, req, resp any) error {
	id := fmt.Sprintf("%s-%d", b.opts.ClientID, b.seq.Add(1))
	ch := make(chan []byte, 1)

	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	payload, err := b.codec.Marshal(envelope{ID: id, ReplyTo: b.replyTopic, Body: req})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", service, err)
	}
	if err := b.publishRaw(b.Topic(service+"/request"), payload, false); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if b.opts.CallTimeout > 0 {
		t := time.NewTimer(b.opts.CallTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case data := <-ch:
		env := envelope{Body: resp}
		if err := b.codec.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("decode %s response: %w", service, err)
		}
		if env.Error != "" {
			return &RemoteError{Service: service, Message: env.Error}
		}
		return nil
	case <-timeout:
		return fmt.Errorf("%s: %w", service, ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) handleReply(payload []byte) {
	var hdr envelope
	if err := b.codec.Unmarshal(payload, &hdr); err != nil {
		b.log.Warn("undecodable reply", "error", err)
		return
	}

	b.mu.Lock()
	ch, ok := b.pending[hdr.ID]
	b.mu.Unlock()
	if !ok {
		b.log.Debug("reply for unknown or expired call", "id", hdr.ID)
		return
	}
	select {
	case ch <- payload:
	default:
	}
}

// Handler answers one service request. decode fills v with the request body.
type Handler func(decode func(v any) error) (any, error)

// Serve answers requests for service with h. Each request is handled on its
// own goroutine so a slow handler never stalls message delivery.
func (b *Bus) Serve(service string, h Handler) error {
	return b.Subscribe(service+"/request", func(payload []byte) {
		go b.answer(service, payload, h)
	})
}

func (b *Bus) answer(service string, payload []byte, h Handler) {
	var hdr envelope
	if err := b.codec.Unmarshal(payload, &hdr); err != nil {
		b.log.Warn("undecodable request", "service", service, "error", err)
		return
	}
	if hdr.ReplyTo == "" {
		b.log.Warn("request without reply topic", "service", service, "id", hdr.ID)
		return
	}

	decode := func(v any) error {
		return b.codec.Unmarshal(payload, &envelope{Body: v})
	}
	body, err := h(decode)
	out := envelope{ID: hdr.ID, Body: body}
	if err != nil {
		out.Error = err.Error()
	}

	data, err := b.codec.Marshal(out)
	if err != nil {
		b.log.Warn("encode response", "service", service, "error", err)
		return
	}
	if err := b.publishRaw(hdr.ReplyTo, data, false); err != nil {
		b.log.Warn("send response", "service", service, "error", err)
	}
}

// Close disconnects from the broker, waiting up to 250 ms for in-flight work.
func (b *Bus) Close() {
	b.client.Disconnect(250)
}
