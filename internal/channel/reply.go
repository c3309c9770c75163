package channel

import (
	"fmt"

	"github.com/slcan-go/slcan/internal/slcan"
)

// commandReply is the value handed from the reader task to a blocked
// Write/Start/SetFilter call through the command WaitableSlot. The slot's
// wire contract (component A) is a byte payload, so the reply is packed
// into a small tagged encoding: byte 0 is the kind, the remainder is the
// kind-specific payload.
type commandReply struct {
	kind  slcan.ReplyKind
	text  string
	flags uint8
}

func packReply(r slcan.Reply) []byte {
	switch r.Kind {
	case slcan.ReplyStatusFlags:
		return []byte{byte(r.Kind), r.Flags}
	case slcan.ReplyText:
		return append([]byte{byte(r.Kind)}, []byte(r.Text)...)
	default:
		return []byte{byte(r.Kind)}
	}
}

func unpackReply(b []byte) (commandReply, error) {
	if len(b) == 0 {
		return commandReply{}, fmt.Errorf("channel: empty command reply payload")
	}
	kind := slcan.ReplyKind(b[0])
	switch kind {
	case slcan.ReplyStatusFlags:
		if len(b) < 2 {
			return commandReply{}, fmt.Errorf("channel: truncated status-flags reply")
		}
		return commandReply{kind: kind, flags: b[1]}, nil
	case slcan.ReplyText:
		return commandReply{kind: kind, text: string(b[1:])}, nil
	default:
		return commandReply{kind: kind}, nil
	}
}
