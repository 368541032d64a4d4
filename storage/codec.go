package storage

import (
	"chat-room/domain"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the persisted record. Field 2 is reserved.
const (
	fieldID      protowire.Number = 1
	fieldAuthor  protowire.Number = 3
	fieldContent protowire.Number = 4
	fieldAt      protowire.Number = 5
)

// DiskMessage is a Message as written to the key-value store.
type DiskMessage struct {
	ID      uuid.UUID
	Author  string
	Content string
	At      int64 // epoch milliseconds
}

func toDiskMessage(message domain.Message) DiskMessage {
	return DiskMessage{
		ID:      uuid.New(),
		Author:  message.Sender,
		Content: message.Body,
		At:      message.Millis(),
	}
}

func (d DiskMessage) toMessage() domain.Message {
	return domain.MessageFromMillis(d.At, d.Author, d.Content)
}

// Marshal encodes the record in protobuf wire format.
func (d DiskMessage) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendString(b, d.ID.String())
	b = protowire.AppendTag(b, fieldAuthor, protowire.BytesType)
	b = protowire.AppendString(b, d.Author)
	b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
	b = protowire.AppendString(b, d.Content)
	b = protowire.AppendTag(b, fieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.At))
	return b
}

// UnmarshalDiskMessage decodes a record. Unknown fields are skipped.
func UnmarshalDiskMessage(b []byte) (DiskMessage, error) {
	var d DiskMessage
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return DiskMessage{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			id, err := uuid.Parse(v)
			if err != nil {
				return DiskMessage{}, fmt.Errorf("invalid message id: %w", err)
			}
			d.ID = id
			b = b[n:]
		case num == fieldAuthor && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			d.Author = v
			b = b[n:]
		case num == fieldContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			d.Content = v
			b = b[n:]
		case num == fieldAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			d.At = int64(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return d, nil
}
