package defect

import (
	"errors"
	"time"

	"github.com/geocoder89/civicfix/internal/domain/user"
)

type Location struct {
	Text      string   `json:"text" bson:"text"`
	Latitude  *float64 `json:"latitude" bson:"latitude,omitempty"`
	Longitude *float64 `json:"longitude" bson:"longitude,omitempty"`
}

type AdminComment struct {
	ID        string    `json:"id" bson:"id"`
	Message   string    `json:"message" bson:"message"`
	AdminID   string    `json:"adminId" bson:"admin_id"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Notification entries are append-only; only Read ever changes.
type Notification struct {
	ID        string    `json:"id" bson:"id"`
	Text      string    `json:"text" bson:"text"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Defect is the report aggregate. Comments and notifications live inside the
// document so every mutation is a single-document write.
type Defect struct {
	ID            string         `json:"id" bson:"_id"`
	Title         string         `json:"title" bson:"title"`
	Description   string         `json:"description" bson:"description"`
	Type          Type           `json:"type" bson:"type"`
	Status        Status         `json:"status" bson:"status"`
	Location      Location       `json:"location" bson:"location"`
	Images        []string       `json:"images" bson:"images"`
	OwnerID       string         `json:"ownerId" bson:"owner_id"`
	Reporter      *user.Summary  `json:"reporter,omitempty" bson:"-"`
	Upvotes       int            `json:"upvotes" bson:"upvotes"`
	AdminComments []AdminComment `json:"adminComments" bson:"admin_comments"`
	Notifications []Notification `json:"notifications" bson:"notifications"`
	CreatedAt     time.Time      `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" bson:"updated_at"`
}

func (d Defect) UnreadCount() int {
	n := 0
	for _, notif := range d.Notifications {
		if !notif.Read {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no slices with d.
func (d Defect) Clone() Defect {
	out := d
	out.Images = append([]string{}, d.Images...)
	out.AdminComments = append([]AdminComment{}, d.AdminComments...)
	out.Notifications = append([]Notification{}, d.Notifications...)
	if d.Location.Latitude != nil {
		lat := *d.Location.Latitude
		out.Location.Latitude = &lat
	}
	if d.Location.Longitude != nil {
		lng := *d.Location.Longitude
		out.Location.Longitude = &lng
	}
	if d.Reporter != nil {
		r := *d.Reporter
		out.Reporter = &r
	}
	return out
}

// Patch carries validated partial updates. Nil fields keep their value.
type Patch struct {
	Title       *string
	Description *string
	Type        *Type
	Location    *Location
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil && p.Location == nil
}

// ListFilter is what a repository sees: visibility is already resolved to
// an owner id ("" means every owner).
type ListFilter struct {
	OwnerID string
	Search  string
	Limit   int
	Offset  int
}

type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

type Page struct {
	Items      []Defect `json:"items"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
	TotalItems int      `json:"totalItems"`
}

// SuggestionSource is the projection used to build search suggestions.
type SuggestionSource struct {
	Title        string `bson:"title"`
	LocationText string `bson:"location_text"`
	Type         Type   `bson:"type"`
}

type UnreadCount struct {
	DefectID string `json:"defectId" bson:"_id"`
	Title    string `json:"title" bson:"title"`
	Unread   int    `json:"unread" bson:"unread"`
}

type UnreadSummary struct {
	Total   int           `json:"total"`
	Defects []UnreadCount `json:"defects"`
}

var ErrNotFound = errors.New("defect not found")

var (
	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
	ErrLocationRequired    = errors.New("location text is required")
	ErrInvalidType         = errors.New("type must be one of normal, urgent, hazardous, recyclable")
	ErrInvalidStatus       = errors.New("status must be one of pending, verified, in_progress, resolved, rejected")
	ErrInvalidCoordinates  = errors.New("latitude must be within [-90, 90] and longitude within [-180, 180]")
	ErrTooManyImages       = errors.New("too many images")
	ErrMessageRequired     = errors.New("message is required")
)

var validationErrors = []error{
	ErrTitleRequired,
	ErrDescriptionRequired,
	ErrLocationRequired,
	ErrInvalidType,
	ErrInvalidStatus,
	ErrInvalidCoordinates,
	ErrTooManyImages,
	ErrMessageRequired,
}

// IsValidationError reports whether err is one of the input errors above.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
