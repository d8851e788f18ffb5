package domain

type SubmissionStatus string

const (
	SubmissionStatusDraft     SubmissionStatus = "DRAFT"
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusGraded    SubmissionStatus = "GRADED"
	SubmissionStatusRevoked   SubmissionStatus = "REVOKED"
)

func (s SubmissionStatus) IsValid() bool {
	switch s {
	case SubmissionStatusDraft, SubmissionStatusSubmitted,
		SubmissionStatusGraded, SubmissionStatusRevoked:
		return true
	default:
		return false
	}
}

func ToSubmissionStatus(status string) (SubmissionStatus, bool) {
	s := SubmissionStatus(status)
	return s, s.IsValid()
}

type UserRole string

const (
	UserRoleStudent    UserRole = "student"
	UserRoleInstructor UserRole = "instructor"
	UserRoleAdmin      UserRole = "admin"
)

// ToUserRole normalizes role names coming from the gateway. "teacher" and
// "tutor" are the names other services use for instructors.
func ToUserRole(role string) UserRole {
	switch role {
	case "student":
		return UserRoleStudent
	case "instructor", "teacher", "tutor":
		return UserRoleInstructor
	case "admin":
		return UserRoleAdmin
	default:
		return UserRole(role)
	}
}

func (r UserRole) IsStaff() bool {
	return r == UserRoleInstructor || r == UserRoleAdmin
}
