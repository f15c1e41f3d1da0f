package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"transcript-tool/internal/database"
	"transcript-tool/internal/models"
)

// UpdatePublisher fans job updates out to websocket subscribers through Redis pub/sub.
type UpdatePublisher struct {
	redis *redis.Client
}

func NewUpdatePublisher(redisClient *redis.Client) *UpdatePublisher {
	return &UpdatePublisher{redis: redisClient}
}

// Publish sends a WebSocket update via Redis pub/sub
func (p *UpdatePublisher) Publish(ctx context.Context, sessionID string, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, database.SessionChannel(sessionID), string(data)).Err()
}
