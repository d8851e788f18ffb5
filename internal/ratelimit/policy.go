package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"submission_service/internal/domain"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

type ExceededError struct {
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *ExceededError) Unwrap() error {
	return ErrRateLimitExceeded
}

// Tier is one bandwidth of a bucket: Capacity tokens refilled evenly over Period.
type Tier struct {
	Name     string        `yaml:"name"`
	Capacity int           `yaml:"capacity"`
	Period   time.Duration `yaml:"period"`
}

func (t Tier) tokensPerSecond() float64 {
	return float64(t.Capacity) / t.Period.Seconds()
}

func (t Tier) validate() error {
	if t.Name == "" {
		return errors.New("tier name is required")
	}
	if t.Capacity <= 0 {
		return fmt.Errorf("tier %s: capacity must be positive", t.Name)
	}
	if t.Period < time.Millisecond {
		return fmt.Errorf("tier %s: period must be at least 1ms", t.Name)
	}
	return nil
}

type TierClass string

const (
	TierClassStudent    TierClass = "student"
	TierClassInstructor TierClass = "instructor"
)

type Policy struct {
	Student    []Tier `yaml:"student"`
	Instructor []Tier `yaml:"instructor"`
}

func DefaultPolicy() Policy {
	return Policy{
		Student: []Tier{
			{Name: "minute", Capacity: 10, Period: time.Minute},
			{Name: "hour", Capacity: 100, Period: time.Hour},
		},
		Instructor: []Tier{
			{Name: "minute", Capacity: 50, Period: time.Minute},
			{Name: "hour", Capacity: 1000, Period: time.Hour},
		},
	}
}

func (p Policy) Validate() error {
	if len(p.Student) == 0 || len(p.Instructor) == 0 {
		return errors.New("rate limit policy needs student and instructor tiers")
	}
	for _, tiers := range [][]Tier{p.Student, p.Instructor} {
		for _, t := range tiers {
			if err := t.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClassFor picks the tier class for a role. Admins share the instructor
// limits; unknown roles get the student limits.
func (p Policy) ClassFor(role domain.UserRole) TierClass {
	switch role {
	case domain.UserRoleInstructor, domain.UserRoleAdmin:
		return TierClassInstructor
	default:
		return TierClassStudent
	}
}

func (p Policy) Tiers(class TierClass) []Tier {
	if class == TierClassInstructor {
		return p.Instructor
	}
	return p.Student
}

type Principal struct {
	UserID string
	Role   domain.UserRole
}

func bucketKey(class TierClass, userID string) string {
	return string(class) + ":" + userID
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Class      TierClass
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one
// for a rejected request.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &ExceededError{RetryAfter: d.RetryAfter}
}

// Limiter admits or rejects one request for a principal. Allow consumes a
// token from every tier or from none.
type Limiter interface {
	Allow(ctx context.Context, p Principal) (Decision, error)
	Clear(ctx context.Context, p Principal) error
}
