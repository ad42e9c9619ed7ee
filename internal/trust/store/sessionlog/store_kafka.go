package sessionlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"ghostauth/internal/trust/models"
)

// KafkaSink publishes each record as JSON, keyed by user id so a user's
// sessions stay ordered within one partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(client *kgo.Client, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic}
}

func (k *KafkaSink) Append(ctx context.Context, record *models.SessionRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(record.UserID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "record_id", Value: []byte(record.ID.String())},
		},
	}
	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce session record: %w", err)
	}
	return nil
}
