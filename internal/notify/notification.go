// Package notify formats school events and delivers them to a Telegram chat.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the wire tag of a notification. It only exists at the JSON
// boundary; inside the service the Go type is the tag.
type Kind string

const (
	KindNewUser             Kind = "new_user"
	KindWebsiteRegistration Kind = "website_registration"
	KindLessonBooking       Kind = "lesson_booking"
	KindSupportMessage      Kind = "support_message"
)

var ErrUnknownKind = errors.New("invalid notification type")

// Notification is one of NewUser, WebsiteRegistration, LessonBooking or
// SupportMessage. The set is closed.
type Notification interface {
	Kind() Kind
	notification()
}

type NewUser struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AnxietyLevel int    `json:"anxietyLevel"`
}

type WebsiteRegistration struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type LessonType string

const (
	LessonTheory  LessonType = "theory"
	LessonDriving LessonType = "driving"
)

type LessonBooking struct {
	UserName       string     `json:"userName"`
	UserEmail      string     `json:"userEmail"`
	InstructorName string     `json:"instructorName"`
	Date           string     `json:"date"`
	Time           string     `json:"time"`
	Type           LessonType `json:"type"`
}

type SupportMessage struct {
	UserName     string `json:"userName"`
	UserEmail    string `json:"userEmail"`
	AnxietyLevel int    `json:"anxietyLevel"`
	MessageText  string `json:"messageText"`
}

func (NewUser) Kind() Kind             { return KindNewUser }
func (WebsiteRegistration) Kind() Kind { return KindWebsiteRegistration }
func (LessonBooking) Kind() Kind       { return KindLessonBooking }
func (SupportMessage) Kind() Kind      { return KindSupportMessage }

func (NewUser) notification()             {}
func (WebsiteRegistration) notification() {}
func (LessonBooking) notification()       {}
func (SupportMessage) notification()      {}

// Envelope is the relay request body.
type Envelope struct {
	Type   Kind            `json:"type"`
	ChatID ChatID          `json:"chatId"`
	Data   json.RawMessage `json:"data"`
}

func NewEnvelope(chatID string, n Notification) (Envelope, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", n.Kind(), err)
	}
	return Envelope{Type: n.Kind(), ChatID: ChatID(chatID), Data: data}, nil
}

// ChatID is a Telegram chat: a numeric ID or a channel @username. Clients
// send either a JSON string or a number.
type ChatID string

func (c *ChatID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = ChatID(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("chatId: %w", err)
	}
	*c = ChatID(num.String())
	return nil
}

// Decode turns a wire tag and payload into a typed notification.
func Decode(kind Kind, data json.RawMessage) (Notification, error) {
	switch kind {
	case KindNewUser:
		return decodeAs[NewUser](kind, data)
	case KindWebsiteRegistration:
		return decodeAs[WebsiteRegistration](kind, data)
	case KindLessonBooking:
		return decodeAs[LessonBooking](kind, data)
	case KindSupportMessage:
		return decodeAs[SupportMessage](kind, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeAs[T Notification](kind Kind, data json.RawMessage) (Notification, error) {
	var n T
	if len(data) == 0 || string(data) == "null" {
		return n, nil
	}
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return n, nil
}
