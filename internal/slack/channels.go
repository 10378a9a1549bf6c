package slack

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/slack-go/slack"
)

// conversationLister is the part of *slack.Client the resolver needs
type conversationLister interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// ChannelResolver turns "#orders" or "orders" into a channel ID.
// Successful lookups are cached for the life of the process.
type ChannelResolver struct {
	client conversationLister
	mu     sync.Mutex
	cache  map[string]string // name -> id
}

// NewChannelResolver creates a new channel resolver
func NewChannelResolver(client conversationLister) *ChannelResolver {
	return &ChannelResolver{
		client: client,
		cache:  make(map[string]string),
	}
}

// ResolveChannel returns the ID for a channel name. IDs are returned unchanged.
func (r *ChannelResolver) ResolveChannel(ctx context.Context, nameOrID string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(nameOrID), "#")
	if name == "" {
		return "", fmt.Errorf("channel name/ID is empty")
	}
	if isChannelID(name) {
		return name, nil
	}

	// Holding the lock across the lookup keeps concurrent first posts to a single listing.
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.cache[name]; ok {
		return id, nil
	}

	id, err := r.lookupChannel(ctx, name)
	if err != nil {
		return "", err
	}
	r.cache[name] = id
	log.Printf("Slack: resolved channel '%s' to '%s'", name, id)
	return id, nil
}

// lookupChannel pages through public and private channels looking for name
func (r *ChannelResolver) lookupChannel(ctx context.Context, name string) (string, error) {
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           1000,
		Types:           []string{"public_channel", "private_channel"},
	}
	for {
		channels, cursor, err := r.client.GetConversationsContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("failed to list channels: %w", err)
		}
		for _, channel := range channels {
			if channel.Name == name {
				return channel.ID, nil
			}
		}
		if cursor == "" {
			return "", fmt.Errorf("channel '%s' not found (is the bot invited?)", name)
		}
		params.Cursor = cursor
	}
}

// Forget drops a cached name, e.g. after Slack reports channel_not_found for it
func (r *ChannelResolver) Forget(nameOrID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, strings.TrimPrefix(strings.TrimSpace(nameOrID), "#"))
}

// isChannelID reports whether s looks like a public (C…) or private (G…) channel ID
func isChannelID(s string) bool {
	if len(s) < 9 || len(s) > 15 || (s[0] != 'C' && s[0] != 'G') {
		return false
	}
	for _, c := range s[1:] {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
