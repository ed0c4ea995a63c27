package coordinator

import (
	"context"
	"fmt"
)

// Bot reconciliation invariant: every known bot identity is subscribed to all
// currently known channels. It runs once over all identities on leadership
// acquisition, and incrementally whenever a bot issues a request or a channel
// is created. Writes happen only when a set actually changed.

// reconcileBot brings one bot's subscription set up to the full channel list.
func (c *Coordinator) reconcileBot(ctx context.Context, name string) error {
	if !c.sessions.IsBot(name) {
		return nil
	}
	if _, err := c.state.ExtendSubscriptions(ctx, name, c.state.ChannelTitles()); err != nil {
		return fmt.Errorf("failed to reconcile bot %q: %w", name, err)
	}
	return nil
}

// reconcileAllBots applies the invariant to every bot identity currently
// present in the subscription collection.
func (c *Coordinator) reconcileAllBots(ctx context.Context) error {
	for _, name := range c.state.SubscriberNames() {
		if !c.sessions.IsBot(name) {
			continue
		}
		if err := c.reconcileBot(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
