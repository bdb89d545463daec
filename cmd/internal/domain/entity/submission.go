package entity

// Submission is one LOI or CIM questionnaire. LOI-only and CIM-only fields
// share the table; whichever set does not apply stays empty.
type Submission struct {
	ID       int      `gorm:"primaryKey"`
	FormType FormType `gorm:"not null;index"`

	FullName string `gorm:"not null"`
	Email    string `gorm:"not null;index"`

	Industry   string
	Location   string
	SellerRole string

	PurchasePrice float64 `gorm:"not null"`
	Revenue       float64 `gorm:"not null"`
	AvgSDE        *float64

	ReasonForSelling string
	OwnerInvolvement string

	// LOI only
	CustomerConcentrationRisk string
	DealCompetitiveness       string
	SellerNoteOpenness        string

	// CIM only
	TotalAdjustments  *float64
	GMInPlace         string
	TenureOfGM        string
	NumberOfEmployees *int

	// Search narrative (both)
	SearchNarrativeFit      string
	SearchNarrativeRelation string
	DealLikesDislikes       string
	DealQuestionsConcerns   string

	ReportURL       string
	UploadedFileURL string
	AttachmentCount int `gorm:"not null;default:0"`

	TermsAccepted bool `gorm:"not null"`

	IsProcessed  bool `gorm:"not null;default:false"`
	PDFGenerated bool `gorm:"not null;default:false"`
	EmailSent    bool `gorm:"not null;default:false"`

	CreatedAt int64 `gorm:"not null"`
	UpdatedAt int64 `gorm:"not null"`
}
