package repo

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-club-go/internal/member/entity"
	"github.com/ovaphlow/pitchfork/service-club-go/pkg/database"
)

// MemberRepo issues the member statements through the gateway.
type MemberRepo struct {
	gw *database.Gateway
}

func NewMemberRepo(gw *database.Gateway) *MemberRepo { return &MemberRepo{gw: gw} }

// EnsureSchema creates the tables and the deletion procedure if missing.
// Convenient for development; production should run migrations.
func (r *MemberRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS postal_codes (
  postal_code CHAR(4) PRIMARY KEY,
  city TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS members (
  member_id BIGSERIAL PRIMARY KEY,
  first_name VARCHAR(100) NOT NULL,
  last_name VARCHAR(100) NOT NULL,
  address VARCHAR(100) NOT NULL,
  postal_code CHAR(4) NOT NULL REFERENCES postal_codes(postal_code),
  phone_number CHAR(8) NOT NULL,
  email VARCHAR(100) NOT NULL UNIQUE,
  password_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_members_name ON members(last_name, first_name);
CREATE TABLE IF NOT EXISTS administrators (
  member_id BIGINT PRIMARY KEY REFERENCES members(member_id) ON DELETE CASCADE
);
CREATE OR REPLACE PROCEDURE delete_member(p_member_id BIGINT)
LANGUAGE plpgsql AS $$
BEGIN
  DELETE FROM administrators WHERE member_id = p_member_id;
  DELETE FROM members WHERE member_id = p_member_id;
END;
$$;
`
	stmt, err := r.gw.Execute(ctx, ddl)
	if err != nil {
		return err
	}
	return stmt.Close()
}

// Insert stores a new member with its password hash and returns the id.
func (r *MemberRepo) Insert(ctx context.Context, m *entity.Member) (int64, error) {
	const q = `INSERT INTO members (first_name, last_name, address, postal_code, phone_number, email, password_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING member_id`
	stmt, err := r.gw.Execute(ctx, q, m.FirstName, m.LastName, m.Address, m.PostalCode, m.PhoneNumber, m.Email, m.PasswordHash)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	return stmt.InsertID()
}

// Update writes the profile fields of an existing member. The password is
// left untouched.
func (r *MemberRepo) Update(ctx context.Context, m *entity.Member) error {
	const q = `UPDATE members
		SET first_name = ?, last_name = ?, address = ?, postal_code = ?, phone_number = ?, email = ?
		WHERE member_id = ?`
	stmt, err := r.gw.Execute(ctx, q, m.FirstName, m.LastName, m.Address, m.PostalCode, m.PhoneNumber, m.Email, m.ID)
	if err != nil {
		return err
	}
	return stmt.Close()
}

// UpdatePassword writes only the password hash.
func (r *MemberRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	stmt, err := r.gw.Execute(ctx, `UPDATE members SET password_hash = ? WHERE member_id = ?`, hash, id)
	if err != nil {
		return err
	}
	return stmt.Close()
}

// Delete calls the delete_member procedure, which owns any cascading rules.
func (r *MemberRepo) Delete(ctx context.Context, id int64) error {
	stmt, err := r.gw.Execute(ctx, `CALL delete_member(?)`, id)
	if err != nil {
		return err
	}
	return stmt.Close()
}

const selectMembers = `SELECT m.member_id, m.first_name, m.last_name, m.address,
		p.postal_code, p.city, m.phone_number, m.email
	FROM members AS m
	JOIN postal_codes AS p ON m.postal_code = p.postal_code`

// GetByID fetches one member joined with its city or sql.ErrNoRows.
func (r *MemberRepo) GetByID(ctx context.Context, id int64) (*entity.Member, error) {
	stmt, err := r.gw.Execute(ctx, selectMembers+` WHERE m.member_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	var row entity.Row
	if err := stmt.Get(&row); err != nil {
		return nil, err
	}
	return entity.FromRow(row), nil
}

// List returns every member ordered by last name, then first name.
func (r *MemberRepo) List(ctx context.Context) ([]*entity.Member, error) {
	stmt, err := r.gw.Execute(ctx, selectMembers+` ORDER BY m.last_name ASC, m.first_name ASC`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	var rows []entity.Row
	if err := stmt.Select(&rows); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]*entity.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.FromRow(row))
	}
	return out, nil
}

// FindCredentials returns every member whose id equals id or whose email
// equals email, with the administrator flag. Callers decide what more than
// one match means.
func (r *MemberRepo) FindCredentials(ctx context.Context, id int64, email string) ([]entity.Credentials, error) {
	const q = `SELECT m.member_id, m.password_hash, (a.member_id IS NOT NULL) AS administrator
		FROM members AS m
		LEFT OUTER JOIN administrators AS a ON m.member_id = a.member_id
		WHERE m.member_id = ? OR m.email = ?
		LIMIT 2`
	stmt, err := r.gw.Execute(ctx, q, id, email)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	var creds []entity.Credentials
	if err := stmt.Select(&creds); err != nil {
		return nil, err
	}
	return creds, nil
}
