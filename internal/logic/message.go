package logic

import "fmt"

// MessageKind identifies a coded message.
type MessageKind string

const (
	KindConnectionRequest MessageKind = "CONNECTION_REQUEST"
	KindConnectionReply   MessageKind = "CONNECTION_REPLY"
	KindLaunchCommand     MessageKind = "LAUNCH_COMMAND"
	KindUnknown           MessageKind = "UNKNOWN"
)

// Message is a fixed-width coded message. Messages are values and never
// change after construction.
type Message struct {
	Kind MessageKind
	Code uint32
	Pad  int // destination pad for launch commands, NoPad otherwise
}

func (m Message) String() string {
	if m.Pad == NoPad {
		return fmt.Sprintf("%s(0x%08X)", m.Kind, m.Code)
	}
	return fmt.Sprintf("%s(0x%08X, pad %d)", m.Kind, m.Code, m.Pad+1)
}

// Codes holds the bit patterns of the three message kinds.
type Codes struct {
	Request uint32
	Reply   uint32
	Launch  uint32
}

// DefaultCodes returns the standard message codes.
func DefaultCodes() Codes {
	return Codes{
		Request: 0x12345678,
		Reply:   0x87654321,
		Launch:  0x789ABCDE,
	}
}

// RequestMessage returns the connection request message.
func (c Codes) RequestMessage() Message {
	return Message{Kind: KindConnectionRequest, Code: c.Request, Pad: NoPad}
}

// ReplyMessage returns the connection reply message, as sent by the pad controller.
func (c Codes) ReplyMessage() Message {
	return Message{Kind: KindConnectionReply, Code: c.Reply, Pad: NoPad}
}

// LaunchMessage returns the launch command destined for pad.
func (c Codes) LaunchMessage(pad int) Message {
	return Message{Kind: KindLaunchCommand, Code: c.Launch, Pad: pad}
}

// Decode maps a received code to its message. Matching is plain equality;
// there is no checksum.
func (c Codes) Decode(code uint32, pad int) Message {
	kind := KindUnknown
	switch code {
	case c.Request:
		kind = KindConnectionRequest
	case c.Reply:
		kind = KindConnectionReply
	case c.Launch:
		kind = KindLaunchCommand
	}
	if kind != KindLaunchCommand {
		pad = NoPad
	}
	return Message{Kind: kind, Code: code, Pad: pad}
}

// Validate reports an error if two kinds share a code.
func (c Codes) Validate() error {
	if c.Request == c.Reply || c.Request == c.Launch || c.Reply == c.Launch {
		return fmt.Errorf("message codes must be distinct: request=0x%08X reply=0x%08X launch=0x%08X",
			c.Request, c.Reply, c.Launch)
	}
	return nil
}
