package entity

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Member is one registered club member.
//
// Password, PasswordConfirmation and PasswordHash are transient: they only
// hold values while a write that changes the password is in flight.
type Member struct {
	ID          int64  `json:"member_id,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address     string `json:"address"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city,omitempty"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`

	Password             string `json:"-"`
	PasswordConfirmation string `json:"-"`
	PasswordHash         string `json:"-"`
}

// Registration is the raw, untrusted input of a sign-up or profile form.
type Registration struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Address              string `json:"address"`
	PostalCode           string `json:"postal_code"`
	PhoneNumber          string `json:"phone_number"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Row is a members row joined with its postal code's city.
type Row struct {
	MemberID    int64  `db:"member_id"`
	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	Address     string `db:"address"`
	PostalCode  string `db:"postal_code"`
	City        string `db:"city"`
	PhoneNumber string `db:"phone_number"`
	Email       string `db:"email"`
}

// Credentials is the projection used to authenticate a member.
type Credentials struct {
	MemberID      int64  `db:"member_id"`
	PasswordHash  string `db:"password_hash"`
	Administrator bool   `db:"administrator"`
}

// FromRegistration builds a member from untrusted input. The result has no
// id and no city until it has been stored and read back.
func FromRegistration(r Registration) *Member {
	return &Member{
		FirstName:            r.FirstName,
		LastName:             r.LastName,
		Address:              r.Address,
		PostalCode:           r.PostalCode,
		PhoneNumber:          r.PhoneNumber,
		Email:                r.Email,
		Password:             r.Password,
		PasswordConfirmation: r.PasswordConfirmation,
	}
}

// FromRow builds a member from a trusted storage row.
func FromRow(r Row) *Member {
	return &Member{
		ID:          r.MemberID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Address:     r.Address,
		PostalCode:  r.PostalCode,
		City:        r.City,
		PhoneNumber: r.PhoneNumber,
		Email:       r.Email,
	}
}

// Persisted reports whether storage has assigned an id.
func (m *Member) Persisted() bool { return m.ID != 0 }

// Clone returns a shallow copy, enough since every field is a value.
func (m *Member) Clone() *Member {
	c := *m
	return &c
}

// FullName joins first and last name, or "Last, First" when lastFirst is set.
func (m *Member) FullName(lastFirst bool) string {
	if lastFirst {
		return m.LastName + ", " + m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// FullAddress returns street address, postal code and city on one line.
func (m *Member) FullAddress() string {
	return m.Address + ", " + m.PostalCode + " " + m.City
}

// Field keys used in FieldErrors.
const (
	FieldFirstName            = "first_name"
	FieldLastName             = "last_name"
	FieldAddress              = "address"
	FieldPostalCode           = "postal_code"
	FieldPhoneNumber          = "phone_number"
	FieldEmail                = "email"
	FieldPassword             = "password"
	FieldPasswordConfirmation = "password_confirmation"
)

// FieldErrors maps a field key to a message fit for the end user.
type FieldErrors map[string]string

var (
	namePattern    = regexp.MustCompile(`^[a-zA-ZæøåÆØÅ '.\-]{1,100}$`)
	addressPattern = regexp.MustCompile(`^[\wæøåÆØÅ '.,\-]{1,100}$`)
	postalPattern  = regexp.MustCompile(`^[0-9]{4}$`)
	phonePattern   = regexp.MustCompile(`^[0-9]{8}$`)

	validate = validator.New()
)

const minPasswordLength = 8

// Validate checks every field and reports all failures at once. The password
// pair is only checked when checkPassword is set.
func (m *Member) Validate(checkPassword bool) FieldErrors {
	errs := FieldErrors{}

	if !namePattern.MatchString(m.FirstName) {
		errs[FieldFirstName] = "Invalid first name."
	}
	if !namePattern.MatchString(m.LastName) {
		errs[FieldLastName] = "Invalid last name."
	}
	if !addressPattern.MatchString(m.Address) {
		errs[FieldAddress] = "Invalid address."
	}
	if !postalPattern.MatchString(m.PostalCode) {
		errs[FieldPostalCode] = "Invalid postal code."
	}
	if !phonePattern.MatchString(m.PhoneNumber) {
		errs[FieldPhoneNumber] = "Invalid phone number."
	}
	if len(m.Email) > 100 || validate.Var(m.Email, "required,email") != nil {
		errs[FieldEmail] = "Invalid email address."
	}

	if checkPassword {
		if !strongPassword(m.Password) {
			errs[FieldPassword] = "The password must be at least 8 characters and contain digits, upper- and lowercase letters."
		}
		if m.Password != m.PasswordConfirmation {
			errs[FieldPasswordConfirmation] = "The passwords must match."
		}
	}
	return errs
}

func strongPassword(pw string) bool {
	if utf8.RuneCountInString(pw) < minPasswordLength {
		return false
	}
	var digit, lower, upper bool
	for _, r := range pw {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	return digit && lower && upper
}
