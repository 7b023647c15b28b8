package pubsub

// ChannelLinkStatus carries link lifecycle changes made by the account
// service (approve, block, remove).
const ChannelLinkStatus = "links:status"

// EventLinkStatusChanged is published whenever a link's status changes.
const EventLinkStatusChanged = "link_status_changed"

// LinkStatusPayload is the payload of EventLinkStatusChanged.
type LinkStatusPayload struct {
	Status string `json:"status"`
}
