package domain

import "time"

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// ============================================================================
// Content
// ============================================================================

// CreateProjectRequest mirrors the "add project" dialog: the rest of the project
// is filled with placeholders the admin edits afterwards
type CreateProjectRequest struct {
	ID        string `json:"id,omitempty" validate:"omitempty,max=120"`
	Title     string `json:"title" validate:"required,max=200"`
	Category  string `json:"category" validate:"max=200"`
	Thumbnail string `json:"thumbnail"`
}

// UpdateProjectRequest is a partial update; nil fields are left untouched
type UpdateProjectRequest struct {
	Title       *string         `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Category    *string         `json:"category,omitempty" validate:"omitempty,max=200"`
	Thumbnail   *string         `json:"thumbnail,omitempty"`
	Images      *[]string       `json:"images,omitempty"`
	Description *string         `json:"description,omitempty"`
	Year        *string         `json:"year,omitempty" validate:"omitempty,max=20"`
	Client      *string         `json:"client,omitempty" validate:"omitempty,max=200"`
	Role        *string         `json:"role,omitempty" validate:"omitempty,max=200"`
	History     *[]HistoryPhase `json:"history,omitempty" validate:"omitempty,dive"`
}

type UpdateAboutRequest struct {
	Content      *[]ContentBlock `json:"content,omitempty" validate:"omitempty,dive"`
	ProfileImage *string         `json:"profileImage,omitempty"`
	Skills       *Skills         `json:"skills,omitempty"`
}

type UpdateHomeRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Subtitle *string `json:"subtitle,omitempty" validate:"omitempty,max=1000"`
}

// ImportMode controls how an imported SiteData is merged with stored documents
type ImportMode string

const (
	// ImportSeed writes only documents that have never been saved
	ImportSeed ImportMode = "seed"
	// ImportReplace overwrites every document
	ImportReplace ImportMode = "replace"
)

type ImportRequest struct {
	Mode ImportMode `json:"mode" validate:"required,oneof=seed replace"`
	Data SiteData   `json:"data"`
}

type ImportResult struct {
	Mode    ImportMode `json:"mode"`
	Written []string   `json:"written"`
	Skipped []string   `json:"skipped"`
}

// DocumentInfo describes the stored state of one content document
type DocumentInfo struct {
	Key       string    `json:"key"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsDefault bool      `json:"isDefault"`
}

// ============================================================================
// Images and uploads
// ============================================================================

type PendingImageDTO struct {
	ID          string     `json:"id"`
	ContentType string     `json:"contentType"`
	Size        int64      `json:"size"`
	Ref         string     `json:"ref"`
	HostedURL   string     `json:"hostedUrl,omitempty"`
	UploadedAt  *time.Time `json:"uploadedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type SaveImageRequest struct {
	ID        string `json:"id,omitempty" validate:"omitempty,max=200"`
	ImageData string `json:"imageData" validate:"required"`
}

// UploadImageRequest uploads a base64 data URL straight to the blob host
type UploadImageRequest struct {
	ImageData string `json:"imageData" validate:"required"`
	ImageID   string `json:"imageId,omitempty" validate:"omitempty,max=200"`
}

type UploadResponse struct {
	Success     bool   `json:"success"`
	ImageID     string `json:"imageId"`
	OriginalURL string `json:"originalUrl"`
	ResizedURL  string `json:"resizedUrl,omitempty"`
	URL         string `json:"url"`
	Host        string `json:"host"`
}

// ImageKitAuthResponse carries the parameters a browser needs to upload to ImageKit directly
type ImageKitAuthResponse struct {
	Token     string `json:"token"`
	Expire    int64  `json:"expire"`
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
}

// ============================================================================
// Sync
// ============================================================================

type SyncRequest struct {
	Force bool `json:"force"`
}

type SyncRunDTO struct {
	ID             string     `json:"id"`
	Trigger        string     `json:"trigger"`
	Status         string     `json:"status"`
	ContentHash    string     `json:"contentHash,omitempty"`
	CommitSHA      string     `json:"commitSha,omitempty"`
	ImagesUploaded int        `json:"imagesUploaded"`
	RefsCleared    int        `json:"refsCleared"`
	Attempts       int        `json:"attempts"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

type SyncStatusDTO struct {
	InProgress     bool        `json:"inProgress"`
	PendingChanges bool        `json:"pendingChanges"`
	ContentHash    string      `json:"contentHash"`
	PendingImages  int64       `json:"pendingImages"`
	LastRun        *SyncRunDTO `json:"lastRun,omitempty"`
	LastPublished  *SyncRunDTO `json:"lastPublished,omitempty"`
}

// MaintenanceResult reports what a migrate-images or repair-refs pass changed
type MaintenanceResult struct {
	ImagesUploaded   int      `json:"imagesUploaded"`
	RefsCleared      int      `json:"refsCleared"`
	DocumentsUpdated []string `json:"documentsUpdated"`
}

// ScrapeResult reports which images a scrape of the deployed site copied
type ScrapeResult struct {
	Pages    int      `json:"pages"`
	Stored   []string `json:"stored"`
	Existing []string `json:"existing"`
	Failed   []string `json:"failed"`
}

type PullRequest struct {
	Mode ImportMode `json:"mode" validate:"required,oneof=seed replace"`
}

// DeployedAsset is the proxied body of a file fetched from the deployed site
type DeployedAsset struct {
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

type VersionDTO struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// ============================================================================
// Auth
// ============================================================================

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Email       string    `json:"email"`
}

type LogoutResponse struct {
	SyncStarted bool `json:"syncStarted"`
}

type AdminDTO struct {
	Email     string    `json:"email"`
	SessionID string    `json:"sessionId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Method    string    `json:"method"`
}
