package events

// DisplayMessage is the wire form of a display update.
type DisplayMessage struct {
	AgentID string `json:"agent_id" binding:"required"`
	Key     string `json:"key" binding:"required"`
	Data    any    `json:"data"`
}

func (m DisplayMessage) Event() Event {
	return Event{Kind: KindDisplay, AgentID: m.AgentID, Key: m.Key, Data: m.Data}
}

// ErrorMessage is the wire form of an agent error.
type ErrorMessage struct {
	AgentID string `json:"agent_id" binding:"required"`
	Message string `json:"message"`
}

func (m ErrorMessage) Event() Event {
	return Event{Kind: KindError, AgentID: m.AgentID, Message: m.Message}
}

// InputMessage is the wire form of an input notification. The receive time
// is added by the registry.
type InputMessage struct {
	AgentID string `json:"agent_id" binding:"required"`
	Ch      string `json:"ch"`
}

func (m InputMessage) Event() Event {
	return Event{Kind: KindInput, AgentID: m.AgentID, Ch: m.Ch}
}
