// Package slack posts order guard notifications to a Slack channel
package slack

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/services"
	"github.com/slack-go/slack"
)

// Notifier sends suspicious order alerts, merge confirmations and digests
type Notifier struct {
	client   *slack.Client
	resolver *ChannelResolver
	channel  string
	now      func() time.Time
}

var _ services.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier posting to channel (name or ID). Extra options
// are passed to the slack client.
func NewNotifier(botToken, channel string, options ...slack.Option) *Notifier {
	client := slack.New(botToken, append([]slack.Option{slack.OptionDebug(false)}, options...)...)
	return &Notifier{
		client:   client,
		resolver: NewChannelResolver(client),
		channel:  channel,
		now:      time.Now,
	}
}

// Verify resolves the configured channel so a bad setting shows up at startup
func (n *Notifier) Verify(ctx context.Context) error {
	_, err := n.resolver.ResolveChannel(ctx, n.channel)
	return err
}

// NotifySuspicious implements services.Notifier
func (n *Notifier) NotifySuspicious(ctx context.Context, order *database.Order, verdict *services.Verdict) error {
	return n.post(ctx, formatSuspicious(order, verdict))
}

// NotifyMerged implements services.Notifier
func (n *Notifier) NotifyMerged(ctx context.Context, survivor *database.Order, mergedOrderIDs []uint, mergedBy string) error {
	text := fmt.Sprintf(":twisted_rightwards_arrows: %s merged orders %s into order #%d (customer %d, total %s)",
		mergedBy, formatIDs(mergedOrderIDs), survivor.ID, survivor.CustomerID, survivor.TotalAmount.StringFixed(2))
	return n.post(ctx, text)
}

// SendDigest posts a summary of open suspicious orders. It is a no-op for an empty list.
func (n *Notifier) SendDigest(ctx context.Context, orders []database.Order) error {
	if len(orders) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":clipboard: %d suspicious order(s) awaiting review\n", len(orders))
	for _, o := range orders {
		fmt.Fprintf(&b, "• #%d customer %d, %s, %s, waiting %s: %s", o.ID, o.CustomerID, o.Status,
			o.TotalAmount.StringFixed(2), formatAge(n.now().Sub(o.CreatedAt)), o.SuspiciousReason)
		if o.LinkedMergedOrderID != nil {
			fmt.Fprintf(&b, " (after merged order #%d)", *o.LinkedMergedOrderID)
		}
		b.WriteString("\n")
	}
	return n.post(ctx, strings.TrimSuffix(b.String(), "\n"))
}

func (n *Notifier) post(ctx context.Context, text string) error {
	channelID, err := n.resolver.ResolveChannel(ctx, n.channel)
	if err != nil {
		return fmt.Errorf("failed to resolve slack channel: %w", err)
	}

	_, ts, err := n.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "channel_not_found") {
			n.resolver.Forget(n.channel)
		}
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	log.Printf("Slack: posted message %s to %s", ts, channelID)
	return nil
}

func formatSuspicious(order *database.Order, verdict *services.Verdict) string {
	var b strings.Builder
	if verdict.IsSingleSuspicious {
		b.WriteString(":mag: Follow-up order after merge\n")
	} else {
		b.WriteString(":warning: Suspicious order\n")
	}
	fmt.Fprintf(&b, "Order #%d from customer %d, total %s, placed %s\n",
		order.ID, order.CustomerID, order.TotalAmount.StringFixed(2), order.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Reason: %s", verdict.Reason)
	if verdict.LinkedMergedOrderID != nil {
		fmt.Fprintf(&b, "\nLinked merged order: #%d", *verdict.LinkedMergedOrderID)
	} else if len(verdict.RelatedOrderIDs) > 0 {
		fmt.Fprintf(&b, "\nRelated orders: %s", formatIDs(verdict.RelatedOrderIDs))
	}
	return b.String()
}

// formatAge renders how long an order has been waiting: "45s", "2m 30s", "1h 15m", "3d 4h"
func formatAge(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	if minutes < 60 {
		if seconds := int(d.Seconds()) % 60; seconds > 0 {
			return fmt.Sprintf("%dm %ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	minutes %= 60
	if hours < 24 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := hours / 24
	hours %= 24
	if hours > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

func formatIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
