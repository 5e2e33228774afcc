package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"gigline/internal/domain"
)

// stars is derived from received feedback at read time; it is never stored.
const userColumns = `u.id, u.name, u.email, u.roles_json, u.project_manager_id,
COALESCE((SELECT AVG(f.stars) FROM feedback f WHERE f.to_user_id = u.id), 0) AS stars,
u.created_at`

func encodeRoles(roles []string) string {
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}
	b, _ := json.Marshal(roles)
	return string(b)
}

func decodeRoles(s string) []string {
	var roles []string
	if err := json.Unmarshal([]byte(s), &roles); err != nil || len(roles) == 0 {
		return []string{domain.RoleUser}
	}
	return roles
}

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var rolesJSON string
	var pm sql.NullString
	if err := scan(&u.ID, &u.Name, &u.Email, &rolesJSON, &pm, &u.Stars, &u.CreatedAt); err != nil {
		return u, err
	}
	if pm.Valid {
		u.ProjectManagerID = &pm.String
	}
	u.Roles = decodeRoles(rolesJSON)
	return u, nil
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,email,roles_json,project_manager_id,created_at) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, encodeRoles(u.Roles), nullableStringPtr(u.ProjectManagerID), u.CreatedAt)
	if isUniqueViolation(err) {
		return domain.Conflictf("user %s already exists", u.ID)
	}
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users u ORDER BY u.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// SetProjectManager assigns (or clears, with nil) the user's PM. The target
// must carry the PM role.
func (r Repo) SetProjectManager(ctx context.Context, userID string, pmID *string) error {
	if pmID != nil {
		pm, err := r.GetUser(ctx, *pmID)
		if err != nil {
			return err
		}
		if !pm.HasRole(domain.RolePM) {
			return domain.Preconditionf("user %s does not have the %s role", *pmID, domain.RolePM)
		}
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET project_manager_id=? WHERE id=?`, nullableStringPtr(pmID), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) setRoles(ctx context.Context, userID string, roles []string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET roles_json=? WHERE id=?`, encodeRoles(roles), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GrantRole(ctx context.Context, userID, role string) error {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.HasRole(role) {
		return nil
	}
	return r.setRoles(ctx, userID, append(u.Roles, role))
}

func (r Repo) RevokeRole(ctx context.Context, userID, role string) error {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	kept := u.Roles[:0]
	for _, have := range u.Roles {
		if have != role {
			kept = append(kept, have)
		}
	}
	return r.setRoles(ctx, userID, kept)
}
