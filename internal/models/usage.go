package models

import "time"

// RequestUsage records per-request token consumption against the upstream.
// Write-path bookkeeping only; reporting over these rows happens elsewhere.
type RequestUsage struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID        string    `gorm:"not null;index;size:64" json:"request_id"`
	Model            string    `gorm:"not null;index;size:128" json:"model"`
	CredentialKind   string    `gorm:"not null;size:32" json:"credential_kind"`
	PromptTokens     int64     `gorm:"not null;default:0" json:"prompt_tokens"`
	CompletionTokens int64     `gorm:"not null;default:0" json:"completion_tokens"`
	TotalTokens      int64     `gorm:"not null;default:0" json:"total_tokens"`
	LatencyMs        int64     `gorm:"not null;default:0" json:"latency_ms"`
	StatusCode       int       `gorm:"not null;default:0" json:"status_code"`
	Streamed         bool      `gorm:"not null;default:false" json:"streamed"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}
