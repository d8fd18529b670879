package slack

import (
	"github.com/slack-go/slack/slackevents"

	"github.com/nextlevelbuilder/qabot/internal/bus"
)

// acceptedSubtypes are message subtypes that represent a person posting.
// Edits, deletions, joins and bot posts all arrive as other subtypes.
var acceptedSubtypes = map[string]bool{
	"":           true,
	"file_share": true,
}

// inboundFromEventsAPI converts an Events API callback into a handler event.
// Webhook and Socket Mode deliveries share it. ok is false for anything that
// is not a person's channel message.
func inboundFromEventsAPI(ev slackevents.EventsAPIEvent) (bus.InboundEvent, bool) {
	if ev.Type != slackevents.CallbackEvent {
		return bus.InboundEvent{}, false
	}
	m, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || m == nil {
		return bus.InboundEvent{}, false
	}
	if !acceptedSubtypes[m.SubType] || m.BotID != "" {
		return bus.InboundEvent{}, false
	}
	if m.Channel == "" || m.TimeStamp == "" {
		return bus.InboundEvent{}, false
	}

	meta := map[string]string{}
	if ev.TeamID != "" {
		meta["team_id"] = ev.TeamID
	}
	if cb, ok := ev.Data.(*slackevents.EventsAPICallbackEvent); ok && cb.EventID != "" {
		meta["event_id"] = cb.EventID
	}
	if m.ChannelType != "" {
		meta["channel_type"] = m.ChannelType
	}
	return bus.InboundEvent{
		Channel:   channelName,
		ChannelID: m.Channel,
		UserID:    m.User,
		Text:      m.Text,
		TS:        m.TimeStamp,
		ThreadTS:  m.ThreadTimeStamp,
		Metadata:  meta,
	}, true
}
