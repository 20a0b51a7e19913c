package defect

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// LocationInput is the client form of a location. Clients send either a plain
// string or an object with text and optional coordinates.
type LocationInput struct {
	Text      string   `json:"text"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (l *LocationInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LocationInput{Text: s}
		return nil
	}

	if b[0] != '{' {
		return errors.New("location must be a string or an object")
	}

	type plain LocationInput
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = LocationInput(p)
	return nil
}

// ParseLocationField reads the multipart "location" field: a JSON object when
// it parses as one, plain text otherwise.
func ParseLocationField(raw string) LocationInput {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var in LocationInput
		if err := json.Unmarshal([]byte(raw), &in); err == nil {
			return in
		}
	}
	return LocationInput{Text: raw}
}

func (l LocationInput) Normalize() (Location, error) {
	text := strings.TrimSpace(l.Text)
	if text == "" {
		return Location{}, ErrLocationRequired
	}

	if l.Latitude != nil && (*l.Latitude < -90 || *l.Latitude > 90) {
		return Location{}, ErrInvalidCoordinates
	}
	if l.Longitude != nil && (*l.Longitude < -180 || *l.Longitude > 180) {
		return Location{}, ErrInvalidCoordinates
	}

	return Location{Text: text, Latitude: l.Latitude, Longitude: l.Longitude}, nil
}

type CreateInput struct {
	Title       string
	Description string
	Type        string
	Location    LocationInput
}

// UpdateInput is the body of PUT /defects/:id. Absent fields are left alone.
type UpdateInput struct {
	Title       *string        `json:"title" binding:"omitempty,max=200"`
	Description *string        `json:"description" binding:"omitempty,max=5000"`
	Type        *string        `json:"type"`
	Location    *LocationInput `json:"location"`
}

func (in UpdateInput) Patch() (Patch, error) {
	var p Patch

	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return Patch{}, ErrTitleRequired
		}
		p.Title = &t
	}

	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			return Patch{}, ErrDescriptionRequired
		}
		p.Description = &d
	}

	if in.Type != nil {
		t, err := ParseType(*in.Type)
		if err != nil {
			return Patch{}, err
		}
		p.Type = &t
	}

	if in.Location != nil {
		loc, err := in.Location.Normalize()
		if err != nil {
			return Patch{}, err
		}
		p.Location = &loc
	}

	return p, nil
}
