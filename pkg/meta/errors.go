package meta

import "fmt"

// NotFoundError reports that a group, device or metadata document does not
// exist. The API layer translates it to a 404 response.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ChannelNotFoundError reports that a channel slug is not declared on a
// device. Raised during channel-scoped query projection; distinct from a
// missing device so clients can tell the two apart.
type ChannelNotFoundError struct {
	Group   string
	Device  string
	Channel string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("channel %q not found on device %s/%s", e.Channel, e.Group, e.Device)
}
