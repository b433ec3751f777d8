package models

type UserType string

const (
	Teacher UserType = "teacher"
	Student UserType = "student"
)

func (t UserType) Valid() bool { return t == Teacher || t == Student }

// DefaultRole и DefaultRating проставляются при регистрации.
const (
	DefaultRole   = "user"
	DefaultRating = 5.0
)

type User struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	UserType    UserType `json:"userType"`
	Subjects    []string `json:"subjects"`
	Rating      *float64 `json:"rating,omitempty"`
	CollegeID   string   `json:"collegeId,omitempty"`
	CollegeName string   `json:"collegeName,omitempty"`
	ProfilePic  string   `json:"profilePic,omitempty"`
}
