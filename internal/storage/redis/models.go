package redis

// DialogState is what the bot remembers about one chat between updates.
type DialogState struct {
	Step         string `json:"step"`
	Category     string `json:"category,omitempty"`
	Transmission string `json:"transmission,omitempty"`
	// Quote message id, edited in place when the user changes their mind.
	QuoteMessageID int `json:"quote_message_id,omitempty"`
}
