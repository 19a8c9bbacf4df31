// Package notify posts messages to the chat channels staff and members watch.
package notify

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("notification channel unavailable")

// Channel delivers plain or Markdown text to a channel and can later replace
// a message it posted. Channel ids are either numeric chat ids or @usernames.
type Channel interface {
	SendMessage(ctx context.Context, channelID, text string) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID, text string) error
}
