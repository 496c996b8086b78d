package model

// TestModule identifies which IELTS module a test belongs to. Listening and
// reading are auto-graded; writing and speaking go through manual review.
type TestModule string

const (
	ModuleListening TestModule = "listening"
	ModuleReading   TestModule = "reading"
	ModuleWriting   TestModule = "writing"
	ModuleSpeaking  TestModule = "speaking"
)

// IsAutoGraded reports whether results for the module can be computed from
// stored correct answers alone.
func (m TestModule) IsAutoGraded() bool {
	return m == ModuleListening || m == ModuleReading
}

// swagger:model Test
type Test struct {
	BaseModel
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	Module          TestModule `gorm:"type:enum('listening','reading','writing','speaking');index" json:"module"`
	DurationMinutes int        `gorm:"not null" json:"durationMinutes"`
	IsPublished     bool       `gorm:"default:false" json:"isPublished"`
	Sections        []Section  `gorm:"foreignKey:TestID" json:"sections,omitempty"`
}

func (Test) TableName() string {
	return "tests"
}

// swagger:model Section
type Section struct {
	BaseModel
	TestID    uint       `gorm:"index;type:bigint unsigned" json:"testId"`
	Title     string     `gorm:"size:255" json:"title"`
	Passage   string     `gorm:"type:longtext" json:"passage"`
	AudioURL  string     `gorm:"size:512" json:"audioUrl"`
	Order     int        `gorm:"column:order_num" json:"order"`
	Questions []Question `gorm:"foreignKey:SectionID" json:"questions,omitempty"`
}

func (Section) TableName() string {
	return "sections"
}
