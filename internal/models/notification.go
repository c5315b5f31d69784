package models

import (
	"time"
)

// Notification is an in-app message for a user
type Notification struct {
	ID        string                 `json:"id" db:"id"`
	UserID    string                 `json:"userId" db:"user_id"`
	Type      string                 `json:"type" db:"type"`
	Title     string                 `json:"title" db:"title"`
	Message   string                 `json:"message" db:"message"`
	Data      map[string]interface{} `json:"data,omitempty" db:"data"`
	Read      bool                   `json:"read" db:"read"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}

// ArtPiece is a portfolio item uploaded by an artist
type ArtPiece struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description *string   `json:"description,omitempty" db:"description"`
	Type        string    `json:"type" db:"type"` // image, audio, video or document
	FileURL     string    `json:"fileUrl" db:"file_url"`
	FileName    string    `json:"fileName" db:"file_name"`
	FilePath    string    `json:"-" db:"file_path"` // object path inside the storage bucket
	FileSize    int64     `json:"fileSize" db:"file_size"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// AuthUser is a row of the secondary username/password table
type AuthUser struct {
	ID           int64      `json:"id" db:"id"`
	UserName     string     `json:"userName" db:"user_name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password"`
	Module       string     `json:"module" db:"module"`
	IsActive     bool       `json:"isActive" db:"is_active"`
	LastLogin    *time.Time `json:"lastLogin,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}
