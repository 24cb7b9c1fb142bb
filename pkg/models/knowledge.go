package models

import "time"

// KnowledgeFile is a reference document the automated agent can search
// over. The raw bytes are archived to object storage; the text chunks
// live in the vector index.
type KnowledgeFile struct {
	BaseModel
	Filename       string `gorm:"not null" json:"filename"`
	TelegramFileID string `gorm:"size:255" json:"telegram_file_id"`
	StorageKey     string `gorm:"size:512" json:"storage_key"`
	MimeType       string `gorm:"size:255" json:"mime_type"`
	FileSize       int64  `json:"file_size"`
	ChunkCount     int    `gorm:"default:0" json:"chunk_count"`
	UploadedBy     int64  `json:"uploaded_by"` // operator telegram id
}

// Setting is a key/value runtime setting (agent prompt and friends).
type Setting struct {
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Value     string    `gorm:"not null;type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known setting keys
const (
	SettingAgentPrompt = "agent_prompt"
)
