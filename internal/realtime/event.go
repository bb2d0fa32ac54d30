package realtime

const (
	TypeConnected     = "connected"
	TypeEmailCreated  = "email_created"
	TypeEmailsUpdated = "emails_updated"
)

// Event is a notification pushed to every connected client. It is encoded
// as a JSON object whose "type" field carries Kind.
type Event interface {
	Kind() string
}

type Connected struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewConnected() Connected {
	return Connected{Type: TypeConnected, Message: "Realtime channel ready"}
}

func (e Connected) Kind() string { return TypeConnected }

// EmailCreated carries the serialized email exactly as the create endpoint
// returned it.
type EmailCreated struct {
	Type  string `json:"type"`
	Email any    `json:"email"`
}

func NewEmailCreated(email any) EmailCreated {
	return EmailCreated{Type: TypeEmailCreated, Email: email}
}

func (e EmailCreated) Kind() string { return TypeEmailCreated }

// EmailsUpdated reports a bulk action by name and modified count only.
type EmailsUpdated struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

func NewEmailsUpdated(action string, count int64) EmailsUpdated {
	return EmailsUpdated{Type: TypeEmailsUpdated, Action: action, Count: count}
}

func (e EmailsUpdated) Kind() string { return TypeEmailsUpdated }
