package entity

// FormType distinguishes the two questionnaire flows and, by extension, the
// two kinds of review calls an event can host.
type FormType string

const (
	FormTypeLOI FormType = "LOI"
	FormTypeCIM FormType = "CIM"
)

func (f FormType) Valid() bool {
	return f == FormTypeLOI || f == FormTypeCIM
}

// CallLabel is the value stored in the calendar event's private extended
// properties ("form_type"), kept byte-compatible with what administrators
// see in the calendar UI.
func (f FormType) CallLabel() string {
	return string(f) + " Call"
}

func FormTypeFromCallLabel(label string) (FormType, bool) {
	switch label {
	case "LOI Call":
		return FormTypeLOI, true
	case "CIM Call":
		return FormTypeCIM, true
	}
	return "", false
}

// MeetingOccurrence is the local capacity ledger for one concrete instance
// of a calendar event. Recurring events produce one row per instance.
// Provider occurrence ids are not globally unambiguous on their own, so the
// natural key is (occurrence_id, begins_at).
type MeetingOccurrence struct {
	ID           int    `gorm:"primaryKey"`
	OccurrenceID string `gorm:"not null;uniqueIndex:idx_occurrence_begin"`
	BeginsAt     int64  `gorm:"not null;uniqueIndex:idx_occurrence_begin"`
	Capacity     int    `gorm:"not null"`
	GuestCount   int    `gorm:"not null"` // denormalized count of registrations
	CreatedAt    int64  `gorm:"not null"`
}

type Registration struct {
	ID           int    `gorm:"primaryKey"`
	InstanceID   int    `gorm:"not null;uniqueIndex:idx_registration_once"` // References: meeting_occurrences(id)
	FullName     string `gorm:"not null"`
	Email        string `gorm:"not null;uniqueIndex:idx_registration_once"` // normalized: lowercased, trimmed
	RegisteredAt int64  `gorm:"not null"`

	// Relations
	Instance MeetingOccurrence `gorm:"foreignKey:InstanceID;references:ID"`
}

// EventLink maps (form_type, host) to the calendar events that serve that
// pairing. Maintained by an explicit admin sync so availability lookups
// never have to scan the whole calendar.
type EventLink struct {
	ID        int      `gorm:"primaryKey"`
	FormType  FormType `gorm:"not null;uniqueIndex:idx_event_link"`
	Host      string   `gorm:"not null;uniqueIndex:idx_event_link"`
	EventID   string   `gorm:"not null;uniqueIndex:idx_event_link"`
	UpdatedAt int64    `gorm:"not null"`
}
