package defect

import (
	"encoding/json"
	"errors"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestParseType(t *testing.T) {
	cases := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"", TypeNormal, false},
		{"urgent", TypeUrgent, false},
		{" Hazardous ", TypeHazardous, false},
		{"recyclable", TypeRecyclable, false},
		{"spicy", "", true},
	}

	for _, tc := range cases {
		got, err := ParseType(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidType) {
				t.Fatalf("ParseType(%q): expected ErrInvalidType, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseType(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		if err != nil || got != s {
			t.Fatalf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}

	for _, bad := range []string{"", "closed", "in progress"} {
		if _, err := ParseStatus(bad); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("ParseStatus(%q): expected ErrInvalidStatus, got %v", bad, err)
		}
	}
}

func TestCanTransitionIsPermissive(t *testing.T) {
	for _, from := range Statuses {
		for _, to := range Statuses {
			if !CanTransition(from, to) {
				t.Fatalf("expected %s -> %s to be allowed", from, to)
			}
		}
	}
	if CanTransition(StatusResolved, Status("archived")) {
		t.Fatalf("expected unknown target to be refused")
	}
}

func TestLocationInputUnmarshal(t *testing.T) {
	var fromString LocationInput
	if err := json.Unmarshal([]byte(`"Main St & 3rd"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if fromString.Text != "Main St & 3rd" || fromString.Latitude != nil {
		t.Fatalf("unexpected location: %+v", fromString)
	}

	var fromObject LocationInput
	if err := json.Unmarshal([]byte(`{"text":"Park","latitude":6.5,"longitude":3.3}`), &fromObject); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if fromObject.Text != "Park" || fromObject.Latitude == nil || *fromObject.Latitude != 6.5 {
		t.Fatalf("unexpected location: %+v", fromObject)
	}

	var bad LocationInput
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Fatalf("expected error for numeric location")
	}
}

func TestParseLocationField(t *testing.T) {
	got := ParseLocationField(`{"text":"Bridge","longitude":-0.12}`)
	if got.Text != "Bridge" || got.Longitude == nil || *got.Longitude != -0.12 {
		t.Fatalf("unexpected: %+v", got)
	}

	got = ParseLocationField("  Behind the market ")
	if got.Text != "Behind the market" {
		t.Fatalf("unexpected: %+v", got)
	}

	// not valid JSON: keep the raw text
	got = ParseLocationField("{broken")
	if got.Text != "{broken" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestLocationNormalize(t *testing.T) {
	if _, err := (LocationInput{Text: "   "}).Normalize(); !errors.Is(err, ErrLocationRequired) {
		t.Fatalf("expected ErrLocationRequired, got %v", err)
	}
	if _, err := (LocationInput{Text: "x", Latitude: f64(91)}).Normalize(); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
	if _, err := (LocationInput{Text: "x", Longitude: f64(-181)}).Normalize(); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}

	loc, err := (LocationInput{Text: " Lagos ", Latitude: f64(6.45)}).Normalize()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if loc.Text != "Lagos" || *loc.Latitude != 6.45 {
		t.Fatalf("unexpected location: %+v", loc)
	}
}

func TestNewFromCreateInput(t *testing.T) {
	in := CreateInput{
		Title:       " Pothole ",
		Description: "Deep one",
		Location:    LocationInput{Text: "Main St"},
	}

	d, err := NewFromCreateInput("owner-1", in, []string{"/uploads/a.png"}, 6)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if d.ID == "" || d.OwnerID != "owner-1" {
		t.Fatalf("unexpected identity fields: %+v", d)
	}
	if d.Title != "Pothole" || d.Type != TypeNormal || d.Status != StatusPending {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if d.AdminComments == nil || d.Notifications == nil {
		t.Fatalf("expected non-nil embedded collections")
	}
	if !d.CreatedAt.Equal(d.UpdatedAt) {
		t.Fatalf("expected equal timestamps on create")
	}
}

func TestNewFromCreateInputValidation(t *testing.T) {
	base := CreateInput{Title: "t", Description: "d", Location: LocationInput{Text: "l"}}

	cases := []struct {
		name   string
		mutate func(*CreateInput)
		images int
		want   error
	}{
		{"missing title", func(in *CreateInput) { in.Title = " " }, 0, ErrTitleRequired},
		{"missing description", func(in *CreateInput) { in.Description = "" }, 0, ErrDescriptionRequired},
		{"missing location", func(in *CreateInput) { in.Location.Text = "" }, 0, ErrLocationRequired},
		{"bad type", func(in *CreateInput) { in.Type = "weird" }, 0, ErrInvalidType},
		{"too many images", func(in *CreateInput) {}, 7, ErrTooManyImages},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			images := make([]string, tc.images)

			_, err := NewFromCreateInput("o", in, images, 6)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsValidationError(err) {
				t.Fatalf("expected validation error classification")
			}
		})
	}
}

func TestUpdateInputPatch(t *testing.T) {
	title := "New title"
	typ := "urgent"
	p, err := UpdateInput{Title: &title, Type: &typ}.Patch()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if *p.Title != "New title" || *p.Type != TypeUrgent || p.Description != nil || p.Location != nil {
		t.Fatalf("unexpected patch: %+v", p)
	}

	empty := "  "
	if _, err := (UpdateInput{Description: &empty}).Patch(); !errors.Is(err, ErrDescriptionRequired) {
		t.Fatalf("expected ErrDescriptionRequired, got %v", err)
	}

	if p, _ := (UpdateInput{}).Patch(); !p.IsEmpty() {
		t.Fatalf("expected empty patch")
	}
}

func TestCommentNotification(t *testing.T) {
	d := Defect{Notifications: []Notification{{Read: true}}}
	d.Notifications = append(d.Notifications, NewCommentNotification("Fixed soon", d.CreatedAt))

	if d.Notifications[1].Text != "Admin commented: Fixed soon" || d.Notifications[1].Read {
		t.Fatalf("unexpected notification: %+v", d.Notifications[1])
	}
	if d.UnreadCount() != 1 {
		t.Fatalf("expected 1 unread, got %d", d.UnreadCount())
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	d := Defect{Images: []string{"a"}, Notifications: []Notification{{Text: "x"}}}
	c := d.Clone()
	c.Images[0] = "b"
	c.Notifications[0].Read = true

	if d.Images[0] != "a" || d.Notifications[0].Read {
		t.Fatalf("clone mutated the original")
	}
}
