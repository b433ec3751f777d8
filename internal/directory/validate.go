package directory

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/models"
)

const minPasswordLen = 6

type Registration struct {
	Name        string          `json:"name" validate:"required"`
	Email       string          `json:"email" validate:"required,email,college_email"`
	CollegeID   string          `json:"collegeId" validate:"required"`
	CollegeName string          `json:"collegeName" validate:"required"`
	UserType    models.UserType `json:"userType" validate:"required,oneof=teacher student"`
	Subjects    []string        `json:"subjects" validate:"required,min=1,dive,required"`
	ProfilePic  string          `json:"profilePic" validate:"omitempty,url"`
}

// Credential: пароль либо Google ID token.
type Credential struct {
	Password string `json:"password,omitempty"`
	IDToken  string `json:"idToken,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("college_email", func(fl validator.FieldLevel) bool {
		return isCollegeEmail(fl.Field().String())
	})
	return v
}

func isCollegeEmail(email string) bool {
	e := strings.ToLower(email)
	return strings.Contains(e, ".edu") || strings.Contains(e, ".ac.")
}

func (r *Registration) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.CollegeID = strings.TrimSpace(r.CollegeID)
	r.CollegeName = strings.TrimSpace(r.CollegeName)
	subjects := make([]string, 0, len(r.Subjects))
	for _, s := range r.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	r.Subjects = subjects
}

// validationError переводит первую ошибку валидатора в код для клиента.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid_request", err.Error())
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "Email" && fe.Tag() == "college_email":
		return apperr.Validation("college_email_required",
			"Please use a valid college email address (e.g. ending in .edu or .ac.in)")
	case fe.Tag() == "required" || fe.Tag() == "min":
		return apperr.Validation("missing_fields", "Please fill in all fields")
	default:
		return apperr.Validation("invalid_"+strings.ToLower(fe.Field()), fe.Error())
	}
}
