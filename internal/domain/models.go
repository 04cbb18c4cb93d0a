package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel carries the identity and timestamps shared by UUID keyed tables
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller did not
func (b *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// ContentDocument stores one content document (projects, about, home) as JSON
type ContentDocument struct {
	Key       string    `gorm:"type:varchar(50);primaryKey"`
	Body      string    `gorm:"type:text;not null"`
	Revision  int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ContentDocument) TableName() string { return "content_documents" }

// PendingImage holds image bytes that have not been published to the blob host yet.
// Once uploaded, HostedURL remembers where they went so a retried sync does not upload twice.
type PendingImage struct {
	ID          string     `gorm:"type:varchar(255);primaryKey"`
	ContentType string     `gorm:"type:varchar(100);not null"`
	Size        int64      `gorm:"not null"`
	Data        []byte     `gorm:"not null"`
	HostedURL   string     `gorm:"type:varchar(1000);column:hosted_url"`
	UploadedAt  *time.Time `gorm:"column:uploaded_at"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

func (PendingImage) TableName() string { return "pending_images" }

// IsUploaded reports whether the image already has a hosted URL
func (p *PendingImage) IsUploaded() bool {
	return p.HostedURL != ""
}

// SyncTrigger records what started a sync
type SyncTrigger string

const (
	SyncTriggerManual   SyncTrigger = "manual"
	SyncTriggerLogout   SyncTrigger = "logout"
	SyncTriggerSchedule SyncTrigger = "schedule"
	SyncTriggerStartup  SyncTrigger = "startup"
	SyncTriggerCLI      SyncTrigger = "cli"
)

// SyncStatus is the outcome of a sync run
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusPublished SyncStatus = "published"
	SyncStatusSkipped   SyncStatus = "skipped"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncRun is the audit record of one attempt to publish data.json
type SyncRun struct {
	BaseModel
	Trigger        SyncTrigger `gorm:"type:varchar(20);not null;column:triggered_by"`
	Status         SyncStatus  `gorm:"type:varchar(20);not null;index"`
	ContentHash    string      `gorm:"type:varchar(64);column:content_hash"`
	CommitSHA      string      `gorm:"type:varchar(64);column:commit_sha"`
	FileSHA        string      `gorm:"type:varchar(64);column:file_sha"`
	ImagesUploaded int         `gorm:"not null;default:0;column:images_uploaded"`
	RefsCleared    int         `gorm:"not null;default:0;column:refs_cleared"`
	Attempts       int         `gorm:"not null;default:0"`
	Error          string      `gorm:"type:text"`
	StartedAt      time.Time   `gorm:"not null;index"`
	FinishedAt     *time.Time
}

func (SyncRun) TableName() string { return "sync_runs" }
