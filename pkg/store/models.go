package store

import (
	"time"
)

// Configuration value types.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeJSON    = "json"
)

// Ledger actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// User is a backend account mirrored locally. The ID is assigned by the
// remote system, never generated here.
type User struct {
	ID           uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Login        string     `gorm:"uniqueIndex;not null" json:"login"`
	PasswordHash string     `json:"-"`
	Firstname    string     `json:"firstname"`
	Lastname     string     `json:"lastname"`
	Email        string     `json:"email"`
	Admin        bool       `json:"admin"`
	Active       bool       `json:"active"`
	GroupIDs     []uint     `gorm:"serializer:json" json:"groups,omitempty"`
	Permissions  []string   `gorm:"serializer:json" json:"permissions,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Group is a named bundle of permissions mirrored from the backend.
type Group struct {
	ID          uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string    `gorm:"index;not null" json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `gorm:"serializer:json" json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is an atomic capability, namespaced by module as
// "<module>_<verb>".
type Permission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Module      string    `gorm:"index;not null" json:"module"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ThirdParty is a business partner record, fully replaced on every
// successful remote refresh.
type ThirdParty struct {
	ID          uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string     `gorm:"index;not null" json:"name"`
	NameAlias   string     `json:"name_alias,omitempty"`
	Address     string     `json:"address,omitempty"`
	Zip         string     `json:"zip,omitempty"`
	Town        string     `json:"town,omitempty"`
	State       string     `json:"state,omitempty"`
	Country     string     `json:"country,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email,omitempty"`
	Website     string     `json:"website,omitempty"`
	Client      bool       `gorm:"index" json:"client"`
	Supplier    bool       `gorm:"index" json:"supplier"`
	Prospect    bool       `gorm:"index" json:"prospect"`
	Status      string     `gorm:"index" json:"status"`
	NotePublic  string     `json:"note_public,omitempty"`
	NotePrivate string     `json:"note_private,omitempty"`
	LastContact *time.Time `json:"last_contact,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Product is a catalogue entry, fully replaced on every successful
// remote refresh.
type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Ref         string    `gorm:"index;not null" json:"ref"`
	Label       string    `gorm:"index;not null" json:"label"`
	Description string    `json:"description,omitempty"`
	Type        string    `gorm:"index" json:"type"`
	Price       float64   `json:"price"`
	PriceTTC    float64   `json:"price_ttc"`
	Status      int       `json:"status"`
	StatusLabel string    `json:"status_label,omitempty"`
	Category    string    `gorm:"index" json:"category,omitempty"`
	Stock       float64   `json:"stock"`
	StockAlert  float64   `json:"stock_alert"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Configuration is a single typed setting, upserted by key.
type Configuration struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"uniqueIndex;not null" json:"key"`
	Value       string    `json:"value"`
	Type        string    `gorm:"not null" json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LedgerEntry records a locally-originated mutation awaiting remote
// acknowledgement.
type LedgerEntry struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	EntityType string     `gorm:"index;not null" json:"entity_type"`
	EntityID   uint       `json:"entity_id"`
	Action     string     `gorm:"not null" json:"action"`
	Payload    string     `json:"payload,omitempty"`
	Synced     bool       `gorm:"index" json:"synced"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
}

// SessionRecord persists the active session so that a valid credential
// surviving a process restart can re-establish the user identity.
// Exactly one row exists at a time.
type SessionRecord struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	UserID      uint                `gorm:"not null" json:"user_id"`
	LocalToken  string              `gorm:"not null" json:"-"`
	Permissions []string            `gorm:"serializer:json" json:"permissions"`
	Rights      map[string][]string `gorm:"serializer:json" json:"rights"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// sessionRecordID is the fixed primary key of the single session row.
const sessionRecordID = 1
