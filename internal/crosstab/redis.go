package crosstab

import (
	"context"
	"encoding/json"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Redis shares the marker between processes: the value is stored under the
// key and every write is published on a channel of the same name so that
// other processes get a change notification.
type Redis struct {
	client *redis.Client
	origin string
	logger logrus.FieldLogger
}

type redisMessage struct {
	Origin string `json:"origin"`
	Value  string `json:"value"`
}

// NewRedis wraps client. Each Redis value is one browsing context.
func NewRedis(client *redis.Client, logger logrus.FieldLogger) *Redis {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Redis{
		client: client,
		origin: uuid.NewString(),
		logger: logger.WithField("component", "crosstab.redis"),
	}
}

func (r *Redis) Write(ctx context.Context, key, value string) error {
	payload, err := json.Marshal(redisMessage{Origin: r.origin, Value: value})
	if err != nil {
		return errors.Wrap(err, "encode marker")
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, value, 0)
		p.Publish(ctx, key, payload)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "write marker %s", key)
	}
	return nil
}

func (r *Redis) Watch(ctx context.Context, key string, fn func(string)) (func(), error) {
	sub := r.client.Subscribe(ctx, key)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrapf(err, "subscribe %s", key)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			var m redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				r.logger.WithError(err).Warn("dropping malformed marker message")
				continue
			}
			if m.Origin == r.origin {
				continue
			}
			fn(m.Value)
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			r.logger.WithError(err).Debug("close subscription")
		}
		<-done
	}, nil
}
