// Package events carries profile-switched notifications from the profile
// registry to the refresh coordinators over an in-process watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
)

// TopicProfileSwitched is the topic profile-switched notifications go to.
const TopicProfileSwitched = "profile-switched"

const subscriberBuffer = 16

// ProfileBus is the process-wide profile-switched channel. The registry
// publishes on it; every refresh coordinator subscribes to it.
type ProfileBus struct {
	pubsub *gochannel.GoChannel
	log    zerolog.Logger
}

func NewProfileBus(log zerolog.Logger) *ProfileBus {
	log = log.With().Str("component", "profile_bus").Logger()
	return &ProfileBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: subscriberBuffer,
		}, NewWatermillLogger(log)),
		log: log,
	}
}

var (
	_ ports.ProfileNotifier = (*ProfileBus)(nil)
	_ ports.ProfileEvents   = (*ProfileBus)(nil)
)

// PublishProfileSwitched broadcasts evt to every current subscriber. It does
// not wait for subscribers to handle it.
func (b *ProfileBus) PublishProfileSwitched(_ context.Context, evt domain.ProfileSwitched) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode profile switch: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("new_profile_id", evt.NewProfile.ID.String())
	if evt.OldProfile != nil {
		msg.Metadata.Set("old_profile_id", evt.OldProfile.ID.String())
	}
	if err := b.pubsub.Publish(TopicProfileSwitched, msg); err != nil {
		return fmt.Errorf("publish profile switch: %w", err)
	}
	return nil
}

// SubscribeProfileSwitched returns decoded notifications until ctx is done.
// Undecodable messages are logged and skipped.
func (b *ProfileBus) SubscribeProfileSwitched(ctx context.Context) (<-chan domain.ProfileSwitched, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicProfileSwitched)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicProfileSwitched, err)
	}

	out := make(chan domain.ProfileSwitched, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			var evt domain.ProfileSwitched
			err := json.Unmarshal(msg.Payload, &evt)
			// Ack either way: a nack would redeliver a payload that never decodes.
			msg.Ack()
			if err != nil {
				b.log.Error().Err(err).Str("message_id", msg.UUID).Msg("undecodable profile switch")
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the pub/sub down and closes every subscription channel.
func (b *ProfileBus) Close() error {
	return b.pubsub.Close()
}
