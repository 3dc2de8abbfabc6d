// Package bot defines the capability contract a frontend must satisfy
// to bridge an external chat surface into the Message Router, and
// carries the inbound message shape both shipped frontends produce.
package bot

import "context"

// InboundMessage is one private text message a frontend has decided is
// worth routing: groups, non-text content, and the bot's own messages
// are filtered out before ever reaching this point.
type InboundMessage struct {
	Wxid       string
	Nickname   string
	RemarkName string
	Text       string
}

// Frontend is the interface every chat surface adapter implements.
// Two shipped variants — stdinfrontend and telegramfrontend — are
// tagged variants of this one contract, not subclasses of a shared
// base: the core treats them interchangeably through this interface
// alone.
type Frontend interface {
	// Start begins producing InboundMessages on in and returns once
	// startup has either succeeded (its receive loop then runs until
	// ctx is cancelled or Stop is called) or failed outright.
	Start(ctx context.Context, in chan<- InboundMessage) error
	// Send delivers one outbound chunk to wxid.
	Send(ctx context.Context, wxid, text string) error
	// Stop ends the receive loop and releases any held resources.
	Stop(ctx context.Context) error
}
