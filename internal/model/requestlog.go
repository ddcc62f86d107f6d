package model

// RequestLog is one audit row per gateway request.
type RequestLog struct {
	ID               int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt        int64  `gorm:"autoCreateTime;index" json:"created_at"`
	Protocol         string `gorm:"size:16" json:"protocol"` // openai | claude
	Model            string `gorm:"size:64" json:"model"`
	Pooled           bool   `json:"pooled"`
	AccountID        string `gorm:"size:128;index" json:"account_id"`
	Stream           bool   `json:"stream"`
	DurationMS       int64  `json:"duration_ms"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	ReasoningTokens  int    `json:"reasoning_tokens"`
	FinishReason     string `gorm:"size:32" json:"finish_reason"`
	Error            string `gorm:"size:512" json:"error"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
