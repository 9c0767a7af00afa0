package content

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Law is a statute.
type Law struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Title       string `gorm:"not null"`
	ShortTitle  string
	Description string
	IsActive    bool `gorm:"default:true;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName pins the table name.
func (Law) TableName() string { return "laws" }

// Section is a numbered subsection of a law.
type Section struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	LawID     string `gorm:"type:uuid;index;not null"`
	Number    string
	Title     string `gorm:"not null"`
	Content   string
	Summary   string
	Embedding *pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name.
func (Section) TableName() string { return "sections" }

// Scenario is a plain-language situation linked to the laws it touches.
// Its keywords text[] column is only read through array_to_string.
type Scenario struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Title       string `gorm:"not null"`
	Description string
	Embedding   *pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName pins the table name.
func (Scenario) TableName() string { return "scenarios" }

// ScenarioLaw links scenarios to laws.
type ScenarioLaw struct {
	ScenarioID string `gorm:"primaryKey;type:uuid"`
	LawID      string `gorm:"primaryKey;type:uuid"`
}

// TableName pins the table name.
func (ScenarioLaw) TableName() string { return "scenario_laws" }

// sectionRow is a section joined with its parent law.
type sectionRow struct {
	ID             string
	Title          string
	Content        string
	Summary        string
	LawID          string
	LawSlug        string
	LawTitle       string
	LawShortTitle  string
	LawDescription string
	LawIsActive    bool
	Distance       float64
}

// scenarioRow is a scenario with an optional distance.
type scenarioRow struct {
	ID          string
	Title       string
	Description string
	Keywords    string
	Distance    float64
}
