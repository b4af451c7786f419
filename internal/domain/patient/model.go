package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("patient not found")
	ErrInvalidCNP       = errors.New("cnp must be 13 digits")
	ErrInvalidBloodType = errors.New("unknown blood type")
)

// Patient maps to the patients table joined with the account email.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	FullName    string     `db:"full_name" json:"full_name"`
	CNP         string     `db:"cnp" json:"cnp"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      string     `db:"gender" json:"gender"`
	BloodType   string     `db:"blood_type" json:"blood_type"`
	Allergies   []string   `db:"allergies" json:"allergies"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	Address     string     `db:"address" json:"address,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ProfileUpdate carries the fields a doctor may edit. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Allergies   *[]string  `json:"allergies,omitempty"`
	BloodType   *string    `json:"blood_type,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Address     *string    `json:"address,omitempty"`
}

var bloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "0+": true, "0-": true, "O+": true, "O-": true,
}

// Apply copies the set fields of u onto p.
func (u ProfileUpdate) Apply(p *Patient) {
	if u.Allergies != nil {
		p.Allergies = cleanAllergies(*u.Allergies)
	}
	if u.BloodType != nil {
		p.BloodType = *u.BloodType
	}
	if u.Gender != nil {
		p.Gender = *u.Gender
	}
	if u.DateOfBirth != nil {
		p.DateOfBirth = u.DateOfBirth
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
}
