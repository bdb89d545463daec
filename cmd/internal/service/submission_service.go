package service

import (
	"dealintake/cmd/internal/domain/entity"
	"dealintake/cmd/internal/utils"
	"dealintake/cmd/internal/utils/apierror"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
)

type SubmissionRepository interface {
	Save(submission *entity.Submission) error
	FindByID(id int) (*entity.Submission, error)
	FindAll(formType entity.FormType, limit, offset int) ([]*entity.Submission, error)
	UpdateFlags(id int, updates map[string]any) error
}

// Dispatcher hands a persisted submission to the background pipeline.
type Dispatcher interface {
	EnqueueSubmission(id int)
}

type SubmissionRequest struct {
	FormType string `json:"form_type" validate:"required,oneof=LOI CIM"`

	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=120"`

	Industry   string `json:"industry" validate:"max=100"`
	Location   string `json:"location" validate:"max=200"`
	SellerRole string `json:"seller_role" validate:"max=100"`

	PurchasePrice float64  `json:"purchase_price" validate:"required,gt=0"`
	Revenue       float64  `json:"revenue" validate:"required,gt=0"`
	AvgSDE        *float64 `json:"avg_sde" validate:"omitempty,gte=0"`

	ReasonForSelling string `json:"reason_for_selling"`
	OwnerInvolvement string `json:"owner_involvement"`

	// LOI only
	CustomerConcentrationRisk string `json:"customer_concentration_risk"`
	DealCompetitiveness       string `json:"deal_competitiveness"`
	SellerNoteOpenness        string `json:"seller_note_openness"`

	// CIM only
	TotalAdjustments  *float64 `json:"total_adjustments"`
	GMInPlace         string   `json:"gm_in_place" validate:"max=10"`
	TenureOfGM        string   `json:"tenure_of_gm" validate:"max=100"`
	NumberOfEmployees *int     `json:"number_of_employees" validate:"omitempty,gte=0"`

	SearchNarrativeFit      string `json:"cim_search_narrative_fit"`
	SearchNarrativeRelation string `json:"search_narrative_relation"`
	DealLikesDislikes       string `json:"deal_likes_dislikes"`
	DealQuestionsConcerns   string `json:"deal_questions_concerns"`

	TermsAccepted bool `json:"terms_accepted" validate:"required"`
}

type SubmissionResponse struct {
	ID            int     `json:"id"`
	FormType      string  `json:"form_type"`
	FullName      string  `json:"full_name"`
	Email         string  `json:"email"`
	Industry      string  `json:"industry,omitempty"`
	Location      string  `json:"location,omitempty"`
	PurchasePrice float64 `json:"purchase_price"`
	Revenue       float64 `json:"revenue"`
	ReportURL     string  `json:"report_url,omitempty"`
	IsProcessed   bool    `json:"is_processed"`
	PDFGenerated  bool    `json:"pdf_generated"`
	EmailSent     bool    `json:"email_sent"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type DefaultSubmissionService struct {
	SubmissionRepo SubmissionRepository
	UserRepo       UserRepository
	Dispatcher     Dispatcher
	Validate       *validator.Validate
}

func NewSubmissionService(submissionRepo SubmissionRepository, userRepo UserRepository, dispatcher Dispatcher, validate *validator.Validate) *DefaultSubmissionService {
	return &DefaultSubmissionService{
		SubmissionRepo: submissionRepo,
		UserRepo:       userRepo,
		Dispatcher:     dispatcher,
		Validate:       validate,
	}
}

// CreateSubmission persists the questionnaire and hands it to the
// background pipeline. The pipeline is fire-and-forget: the submission
// commits regardless of what happens to the report, email or Slack ping.
func (s *DefaultSubmissionService) CreateSubmission(req *SubmissionRequest) (*SubmissionResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := s.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	now := utils.NowUTC()
	submission := &entity.Submission{
		FormType:                  entity.FormType(req.FormType),
		FullName:                  req.FullName,
		Email:                     utils.NormalizeEmail(req.Email),
		Industry:                  req.Industry,
		Location:                  req.Location,
		SellerRole:                req.SellerRole,
		PurchasePrice:             req.PurchasePrice,
		Revenue:                   req.Revenue,
		AvgSDE:                    req.AvgSDE,
		ReasonForSelling:          req.ReasonForSelling,
		OwnerInvolvement:          req.OwnerInvolvement,
		CustomerConcentrationRisk: req.CustomerConcentrationRisk,
		DealCompetitiveness:       req.DealCompetitiveness,
		SellerNoteOpenness:        req.SellerNoteOpenness,
		TotalAdjustments:          req.TotalAdjustments,
		GMInPlace:                 req.GMInPlace,
		TenureOfGM:                req.TenureOfGM,
		NumberOfEmployees:         req.NumberOfEmployees,
		SearchNarrativeFit:        req.SearchNarrativeFit,
		SearchNarrativeRelation:   req.SearchNarrativeRelation,
		DealLikesDislikes:         req.DealLikesDislikes,
		DealQuestionsConcerns:     req.DealQuestionsConcerns,
		TermsAccepted:             req.TermsAccepted,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	if err := s.SubmissionRepo.Save(submission); err != nil {
		log.Errorf("failed to save submission from %s: %v", submission.Email, err)
		return nil, apierror.InternalServerError
	}

	s.Dispatcher.EnqueueSubmission(submission.ID)
	return toSubmissionResponse(submission), nil
}

func (s *DefaultSubmissionService) GetSubmissions(subID, rawFormType string, limit, offset int) ([]*SubmissionResponse, apierror.ErrorResponse) {
	if apierr := s.requireAdmin(subID); apierr != nil {
		return nil, apierr
	}

	formType := entity.FormType(rawFormType)
	if rawFormType != "" && !formType.Valid() {
		return nil, apierror.NewInvalidParamTypeError("form_type", "LOI or CIM")
	}

	submissions, err := s.SubmissionRepo.FindAll(formType, limit, offset)
	if err != nil {
		log.Errorf("failed to fetch submissions: %v", err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*SubmissionResponse, len(submissions))
	for i, submission := range submissions {
		resp[i] = toSubmissionResponse(submission)
	}
	return resp, nil
}

func (s *DefaultSubmissionService) GetSubmission(id int, subID string) (*SubmissionResponse, apierror.ErrorResponse) {
	if apierr := s.requireAdmin(subID); apierr != nil {
		return nil, apierr
	}

	submission, err := s.SubmissionRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch submission %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	if submission == nil {
		return nil, apierror.NotFoundError
	}
	return toSubmissionResponse(submission), nil
}

// RegenerateReport re-runs the pipeline for one submission, e.g. after a
// template change or a failed upload that exhausted its retries.
func (s *DefaultSubmissionService) RegenerateReport(id int, subID string) apierror.ErrorResponse {
	if apierr := s.requireAdmin(subID); apierr != nil {
		return apierr
	}

	submission, err := s.SubmissionRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch submission %d: %v", id, err)
		return apierror.InternalServerError
	}
	if submission == nil {
		return apierror.NotFoundError
	}

	updates := map[string]any{
		"pdf_generated": false,
		"is_processed":  false,
		"updated_at":    utils.NowUTC(),
	}
	if err := s.SubmissionRepo.UpdateFlags(id, updates); err != nil {
		log.Errorf("failed to reset submission %d for regeneration: %v", id, err)
		return apierror.InternalServerError
	}

	s.Dispatcher.EnqueueSubmission(id)
	return nil
}

func (s *DefaultSubmissionService) requireAdmin(subID string) apierror.ErrorResponse {
	caller, err := s.UserRepo.FindBySub(subID)
	if err != nil {
		log.Errorf("failed to check if user %s is admin: %v", subID, err)
		return apierror.InternalServerError
	}
	if caller == nil || !caller.IsAdmin {
		return apierror.ForbiddenError
	}
	return nil
}

func toSubmissionResponse(submission *entity.Submission) *SubmissionResponse {
	return &SubmissionResponse{
		ID:            submission.ID,
		FormType:      string(submission.FormType),
		FullName:      submission.FullName,
		Email:         submission.Email,
		Industry:      submission.Industry,
		Location:      submission.Location,
		PurchasePrice: submission.PurchasePrice,
		Revenue:       submission.Revenue,
		ReportURL:     submission.ReportURL,
		IsProcessed:   submission.IsProcessed,
		PDFGenerated:  submission.PDFGenerated,
		EmailSent:     submission.EmailSent,
		CreatedAt:     utils.FormatEpoch(submission.CreatedAt),
		UpdatedAt:     utils.FormatEpoch(submission.UpdatedAt),
	}
}
