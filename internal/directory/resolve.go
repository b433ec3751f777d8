package directory

import "github.com/edubridge/edubridge-backend/internal/models"

// Assertion: проверенные данные от внешнего провайдера (Google).
type Assertion struct {
	Subject    string
	Email      string
	Name       string
	PictureURL string
}

// Prefill: данные для формы регистрации нового пользователя.
type Prefill struct {
	Subject    string `json:"subject,omitempty"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Resolution is either an existing profile or a request to register.
type Resolution struct {
	Existing          *models.User
	NeedsRegistration *Prefill
	// BackfillPicture is set when the existing profile has no picture and the
	// provider supplied one.
	BackfillPicture string
}

func (r Resolution) NewUserRequired() bool { return r.NeedsRegistration != nil }

// Resolve decides the outcome of a federated sign-in without side effects.
func Resolve(existing *models.User, a Assertion) Resolution {
	if existing == nil {
		return Resolution{NeedsRegistration: &Prefill{
			Subject:    a.Subject,
			Email:      a.Email,
			Name:       a.Name,
			ProfilePic: a.PictureURL,
		}}
	}
	r := Resolution{Existing: existing}
	if existing.ProfilePic == "" && a.PictureURL != "" {
		r.BackfillPicture = a.PictureURL
	}
	return r
}
