package entity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() Registration {
	return Registration{
		FirstName:            "Kari",
		LastName:             "Nordmann",
		Address:              "Storgata 1",
		PostalCode:           "3800",
		PhoneNumber:          "91234567",
		Email:                "kari@example.no",
		Password:             "Hemmelig1",
		PasswordConfirmation: "Hemmelig1",
	}
}

func TestFromRegistration_IsUntrusted(t *testing.T) {
	m := FromRegistration(validRegistration())

	assert.False(t, m.Persisted())
	assert.Empty(t, m.City)
	assert.Equal(t, "Hemmelig1", m.Password)
	assert.Equal(t, "Hemmelig1", m.PasswordConfirmation)
}

func TestFromRow_IsTrusted(t *testing.T) {
	m := FromRow(Row{MemberID: 4, FirstName: "Ola", LastName: "Nordmann", Address: "Bakken 2", PostalCode: "3800", City: "Bø i Telemark", PhoneNumber: "98765432", Email: "ola@example.no"})

	assert.True(t, m.Persisted())
	assert.Equal(t, "Bø i Telemark", m.City)
	assert.Empty(t, m.Password)
	assert.Empty(t, m.PasswordConfirmation)
}

func TestValidate_AcceptsValidInput(t *testing.T) {
	m := FromRegistration(validRegistration())
	assert.Empty(t, m.Validate(true))

	m.FirstName = "Åse-Marie"
	m.LastName = "O'Brien Ødegård"
	m.Address = "Ærlige vei 12, 2. etg."
	m.Password = "Blåbærsyltetøy9Æ"
	m.PasswordConfirmation = m.Password
	assert.Empty(t, m.Validate(true))
}

func TestValidate_ReportsExactlyTheViolatedFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Registration)
		want   []string
	}{
		{"short postal code", func(r *Registration) { r.PostalCode = "123" }, []string{FieldPostalCode}},
		{"letters in postal code", func(r *Registration) { r.PostalCode = "38a0" }, []string{FieldPostalCode}},
		{"digits in first name", func(r *Registration) { r.FirstName = "K4ri" }, []string{FieldFirstName}},
		{"empty last name", func(r *Registration) { r.LastName = "" }, []string{FieldLastName}},
		{"long last name", func(r *Registration) { r.LastName = strings.Repeat("a", 101) }, []string{FieldLastName}},
		{"address with semicolon", func(r *Registration) { r.Address = "Storgata 1;" }, []string{FieldAddress}},
		{"seven digit phone", func(r *Registration) { r.PhoneNumber = "9123456" }, []string{FieldPhoneNumber}},
		{"malformed email", func(r *Registration) { r.Email = "kari.example.no" }, []string{FieldEmail}},
		{"long email", func(r *Registration) { r.Email = strings.Repeat("k", 95) + "@x.no" + "o" }, []string{FieldEmail}},
		{"password without digit", func(r *Registration) { r.Password, r.PasswordConfirmation = "Hemmelighet", "Hemmelighet" }, []string{FieldPassword}},
		{"password without upper", func(r *Registration) { r.Password, r.PasswordConfirmation = "hemmelig1", "hemmelig1" }, []string{FieldPassword}},
		{"short password", func(r *Registration) { r.Password, r.PasswordConfirmation = "Hem1", "Hem1" }, []string{FieldPassword}},
		{"mismatched confirmation", func(r *Registration) { r.PasswordConfirmation = "Hemmelig2" }, []string{FieldPasswordConfirmation}},
		{"several at once", func(r *Registration) {
			r.PostalCode = "1"
			r.PhoneNumber = "x"
			r.Email = ""
		}, []string{FieldPostalCode, FieldPhoneNumber, FieldEmail}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegistration()
			tt.mutate(&r)

			errs := FromRegistration(r).Validate(true)

			keys := make([]string, 0, len(errs))
			for k := range errs {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.want, keys)
		})
	}
}

func TestValidate_SkipsPasswordWhenNotRequested(t *testing.T) {
	r := validRegistration()
	r.Password = ""
	r.PasswordConfirmation = "something else"

	assert.Empty(t, FromRegistration(r).Validate(false))
}

func TestFullNameAndAddress(t *testing.T) {
	m := FromRow(Row{MemberID: 1, FirstName: "Kari", LastName: "Nordmann", Address: "Storgata 1", PostalCode: "3800", City: "Bø i Telemark"})

	assert.Equal(t, "Kari Nordmann", m.FullName(false))
	assert.Equal(t, "Nordmann, Kari", m.FullName(true))
	assert.Equal(t, "Storgata 1, 3800 Bø i Telemark", m.FullAddress())
}

func TestMember_SecretsNeverSerialized(t *testing.T) {
	m := FromRegistration(validRegistration())
	m.PasswordHash = "$2a$04$hash"

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "Hemmelig1")
	assert.NotContains(t, string(raw), "$2a$04$hash")
}

func TestClone_IsIndependent(t *testing.T) {
	m := FromRow(Row{MemberID: 1, FirstName: "Kari"})
	c := m.Clone()
	c.FirstName = "Ola"

	assert.Equal(t, "Kari", m.FirstName)
}
