package idle

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"timeclock/internal/chat"
	"timeclock/internal/queue"
)

// Deliver consumes idle notices from the queue and pushes them to users
// through the chat client until ctx is done. Delivery is fire-and-forget
// per user: one failed send is logged and never aborts the rest.
func Deliver(ctx context.Context, q queue.Queue, client *chat.Client, log *zap.SugaredLogger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != MessageType {
			continue
		}
		var notice Notice
		if err := json.Unmarshal(msg.Body, &notice); err != nil {
			log.Errorw("decode idle notice", "err", err)
			continue
		}
		if err := client.SendMessage(ctx, notice.UserID, notice.Text); err != nil {
			log.Errorw("send idle notice", "user_id", notice.UserID, "err", err)
			continue
		}
		log.Infow("idle notice delivered", "user_id", notice.UserID, "hours", notice.Hours)
	}
	return nil
}
