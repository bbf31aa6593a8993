// model.go this code defines the data model for the application
package datastore

import "time"

// Person represents an enrolled member of the roster.
type Person struct {
	ID        uint   `gorm:"primaryKey"`
	RegNo     string `gorm:"uniqueIndex:idx_people_regno;not null"` // registration number, natural key
	Name      string `gorm:"index:idx_people_name"`
	GroupTag  string `gorm:"index:idx_people_group"` // course or cohort label for subset sessions
	Mobile    string
	PhotoPath string // enrollment photo on disk, source of the embedding
	Embedding []byte // serialized face descriptor, empty until derived
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attendance represents a single attendance mark.
// The composite unique index enforces at most one mark per person per day;
// racing commits resolve through it rather than through application locks.
type Attendance struct {
	ID         uint    `gorm:"primaryKey"`
	PersonID   uint    `gorm:"uniqueIndex:idx_attendances_person_date;not null"`
	Date       string  `gorm:"uniqueIndex:idx_attendances_person_date;index:idx_attendances_date;not null"` // local date, 2006-01-02
	Time       string  // local time of the winning commit, 15:04:05
	Confidence float64 // match confidence recorded on the winning insert
	Mode       string  `gorm:"type:varchar(20)"` // session mode that committed: verify, open, group
	CreatedAt  time.Time
}

// AttendanceEntry is a read model joining an attendance mark with its person,
// used by listings and the web API.
type AttendanceEntry struct {
	ID         uint    `json:"id"`
	PersonID   uint    `json:"personId"`
	RegNo      string  `json:"regNo"`
	Name       string  `json:"name"`
	GroupTag   string  `json:"groupTag,omitempty"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Confidence float64 `json:"confidence"`
	Mode       string  `json:"mode,omitempty"`
}

// HasEmbedding reports whether a derived descriptor is stored for the person.
func (p *Person) HasEmbedding() bool {
	return len(p.Embedding) > 0
}
