package bus

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns messages into payload bytes and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

var (
	// JSON is the default codec, matching the bridge's JSON encoding.
	JSON Codec = jsonCodec{}
	// MsgPack is a compact binary codec for constrained radio links.
	MsgPack Codec = msgpackCodec{}
)

// CodecByName returns the codec for "json" or "msgpack". An empty name is JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	default:
		return nil, fmt.Errorf("unknown payload codec %q", name)
	}
}
