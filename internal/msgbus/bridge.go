package msgbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// BridgeConfig controls the external stream bridge: a whitelist of
// topics forwarded onto a shared Redis stream for a dashboard or a
// second node. The in-process bus remains authoritative; the bridge
// is lossy on the external side.
type BridgeConfig struct {
	Topics           []string
	StreamPrefix     string
	UseTraderID      bool
	UseTraderPrefix  bool
	UseInstanceID    bool
	StreamPerTopic   bool
	MaxStreamLen     int64
	TraderID         string
	InstanceID       string
}

// envelope is the JSON payload written to the stream; fields are omitted
// when their corresponding Use* flag is false. Forwarded messages carry
// {trader_id?, instance_id?} prefixes, both configurable.
type envelope struct {
	TraderID   string          `json:"trader_id,omitempty"`
	InstanceID string          `json:"instance_id,omitempty"`
	Topic      string          `json:"topic"`
	Data       json.RawMessage `json:"data"`
	TsEvent    int64           `json:"ts_event"`
}

// Bridge forwards a topic whitelist from the in-process Bus onto a Redis
// stream via XAdd. Subscribing the bridge to the Bus is the caller's
// responsibility (typically the kernel, at construction).
type Bridge struct {
	cfg    BridgeConfig
	client redis.UniversalClient
	logger *slog.Logger
}

// NewBridge constructs a Bridge over an already-connected Redis client.
func NewBridge(cfg BridgeConfig, client redis.UniversalClient, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{cfg: cfg, client: client, logger: logger.With("component", "msgbus-bridge")}
}

// Attach subscribes the bridge to every whitelisted topic on bus.
func (br *Bridge) Attach(bus *Bus) error {
	for _, topic := range br.cfg.Topics {
		topic := topic
		if err := bus.Subscribe(topic, "bridge:"+topic, func(t string, data any) {
			br.forward(context.Background(), t, data)
		}); err != nil {
			return fmt.Errorf("bridge attach %q: %w", topic, err)
		}
	}
	return nil
}

func (br *Bridge) streamKey(topic string) string {
	key := br.cfg.StreamPrefix
	if br.cfg.UseTraderPrefix && br.cfg.TraderID != "" {
		key = br.cfg.TraderID + ":" + key
	}
	if br.cfg.StreamPerTopic {
		key = key + ":" + topic
	}
	return key
}

// forward serializes data as JSON and XAdds it to the configured stream. A
// failed publish is logged, never escalated — the bridge is lossy on the
// external side by design.
func (br *Bridge) forward(ctx context.Context, topic string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		br.logger.Error("bridge marshal failed", "topic", topic, "error", err)
		return
	}

	env := envelope{Topic: topic, Data: raw, TsEvent: time.Now().UnixNano()}
	if br.cfg.UseTraderID {
		env.TraderID = br.cfg.TraderID
	}
	if br.cfg.UseInstanceID {
		env.InstanceID = br.cfg.InstanceID
	}

	payload, err := json.Marshal(env)
	if err != nil {
		br.logger.Error("bridge envelope marshal failed", "topic", topic, "error", err)
		return
	}

	args := &redis.XAddArgs{
		Stream: br.streamKey(topic),
		Values: map[string]any{"payload": payload},
	}
	if br.cfg.MaxStreamLen > 0 {
		args.MaxLen = br.cfg.MaxStreamLen
		args.Approx = true
	}

	if err := br.client.XAdd(ctx, args).Err(); err != nil {
		br.logger.Error("bridge XAdd failed", "topic", topic, "stream", args.Stream, "error", err)
	}
}
