package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// MailThrottle suppresses repeated mails with the same subject to the same
// recipient inside a time window. Many mail servers throttle senders that
// send too quickly.
// Key format: mail:<recipient>:<sha1(subject)>
type MailThrottle struct {
	client *redis.Client
	window time.Duration
}

// NewMailThrottle creates a MailThrottle wrapping the given Redis client.
func NewMailThrottle(client *redis.Client, window time.Duration) *MailThrottle {
	return &MailThrottle{client: client, window: window}
}

// Allow reports whether a mail may be sent now and, if so, reserves the
// window for it. A zero window disables throttling.
func (t *MailThrottle) Allow(ctx context.Context, recipient, subject string) (bool, error) {
	if t.window <= 0 {
		return true, nil
	}
	ok, err := t.client.SetNX(ctx, t.key(recipient, subject), "1", t.window).Result()
	if err != nil {
		return false, fmt.Errorf("mail throttle: %w", err)
	}
	return ok, nil
}

func (t *MailThrottle) key(recipient, subject string) string {
	sum := sha1.Sum([]byte(subject))
	return fmt.Sprintf("mail:%s:%s", strings.ToLower(recipient), hex.EncodeToString(sum[:]))
}
