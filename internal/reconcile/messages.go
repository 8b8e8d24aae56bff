package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
)

// MessageType tags relayed payloads.
type MessageType string

const (
	TypeCreate  MessageType = "create"
	TypeEdit    MessageType = "edit"
	TypeDelete  MessageType = "delete"
	TypeSync    MessageType = "sync"
	TypeLog     MessageType = "log"
	TypeVersion MessageType = "version"
)

// Message is one decoded relay payload. The concrete types are CreateMsg,
// EditMsg, DeleteMsg, SyncMsg, LogMsg and VersionMsg.
type Message interface {
	Type() MessageType
}

type CreateMsg struct{ Record model.EventRecord }
type EditMsg struct{ Record model.EventRecord }
type DeleteMsg struct{ Record model.EventRecord }

// SyncMsg is the historical batch sent after a reconnect.
type SyncMsg struct{ Records []model.EventRecord }

type LogMsg struct{ Text string }

// VersionMsg announces the newest released client version.
type VersionMsg struct{ Version string }

func (CreateMsg) Type() MessageType  { return TypeCreate }
func (EditMsg) Type() MessageType    { return TypeEdit }
func (DeleteMsg) Type() MessageType  { return TypeDelete }
func (SyncMsg) Type() MessageType    { return TypeSync }
func (LogMsg) Type() MessageType     { return TypeLog }
func (VersionMsg) Type() MessageType { return TypeVersion }

type envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type logBody struct {
	Message string `json:"message"`
}

type versionBody struct {
	Version string `json:"version"`
}

// DecodeMessage is the single place relay payloads are parsed.
func DecodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeCreate, TypeEdit, TypeDelete:
		var rec model.EventRecord
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", env.Type, err)
		}
		rec.Type = model.MutationType(env.Type)
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		switch env.Type {
		case TypeCreate:
			return CreateMsg{Record: rec}, nil
		case TypeEdit:
			return EditMsg{Record: rec}, nil
		default:
			return DeleteMsg{Record: rec}, nil
		}
	case TypeSync:
		var recs []model.EventRecord
		if err := json.Unmarshal(env.Data, &recs); err != nil {
			return nil, fmt.Errorf("decode sync batch: %w", err)
		}
		valid := recs[:0]
		for _, r := range recs {
			if r.Type == "" {
				r.Type = model.MutationCreate
			}
			if r.Validate() == nil {
				valid = append(valid, r)
			}
		}
		return SyncMsg{Records: valid}, nil
	case TypeLog:
		var b logBody
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil, fmt.Errorf("decode log message: %w", err)
		}
		return LogMsg{Text: b.Message}, nil
	case TypeVersion:
		var b versionBody
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil, fmt.Errorf("decode version message: %w", err)
		}
		return VersionMsg{Version: b.Version}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// EncodeMessage is the inverse of DecodeMessage.
func EncodeMessage(m Message) ([]byte, error) {
	var data any
	switch v := m.(type) {
	case CreateMsg:
		data = v.Record
	case EditMsg:
		data = v.Record
	case DeleteMsg:
		data = v.Record
	case SyncMsg:
		data = v.Records
	case LogMsg:
		data = logBody{Message: v.Text}
	case VersionMsg:
		data = versionBody{Version: v.Version}
	default:
		return nil, fmt.Errorf("unsupported message %T", m)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: m.Type(), Data: raw})
}
