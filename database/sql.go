package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-service/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL,
	token      TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	image      TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT '',
	extra      TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

const accountColumns = "id, email, password, role, token, first_name, last_name, image, country, extra, created_at, updated_at"

// accountRow is the relational shape of an account. Pass-through profile
// fields live in the extra column as a JSON object.
type accountRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	Role      string    `db:"role"`
	Token     string    `db:"token"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Image     string    `db:"image"`
	Country   string    `db:"country"`
	Extra     string    `db:"extra"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r accountRow) toAccount() (*models.Account, error) {
	a := &models.Account{
		ID:        r.ID,
		Email:     r.Email,
		Password:  r.Password,
		Role:      models.Role(r.Role),
		Token:     r.Token,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Image:     r.Image,
		Country:   r.Country,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	extra, err := decodeExtra(r.Extra)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", r.ID, err)
	}
	a.Extra = extra
	return a, nil
}

func decodeExtra(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	var extra map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil, fmt.Errorf("decode extra fields: %w", err)
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

func encodeExtra(extra map[string]interface{}) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("encode extra fields: %w", err)
	}
	return string(raw), nil
}

// isUniqueViolation recognises unique constraint failures from sqlite and postgres
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// SQLStore keeps accounts in a relational table through sqlx.
// It serves both the sqlite3 and the postgres (pgx) drivers.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLStore wraps an open connection
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) postgres() bool {
	name := s.db.DriverName()
	return name == "pgx" || name == "postgres"
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, accountsSchema); err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}
	return nil
}

func (s *SQLStore) Create(ctx context.Context, account *models.Account) error {
	extra, err := encodeExtra(account.Extra)
	if err != nil {
		return err
	}
	id := account.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now()

	query := s.db.Rebind("INSERT INTO accounts (" + accountColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err = s.db.ExecContext(ctx, query,
		id, account.Email, account.Password, string(account.Role), account.Token,
		account.FirstName, account.LastName, account.Image, account.Country,
		extra, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}

	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *SQLStore) FindOne(ctx context.Context, query models.AccountQuery) (*models.Account, error) {
	if query.Email != "" {
		return s.findOne(ctx, "email = ?", query.Email)
	}
	return s.findOne(ctx, "first_name = ? AND last_name = ?", query.FirstName, query.LastName)
}

func (s *SQLStore) findOne(ctx context.Context, where string, args ...interface{}) (*models.Account, error) {
	var row accountRow
	query := s.db.Rebind("SELECT " + accountColumns + " FROM accounts WHERE " + where + " ORDER BY created_at LIMIT 1")
	err := s.db.GetContext(ctx, &row, query, args...)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return row.toAccount()
}

func (s *SQLStore) List(ctx context.Context) ([]*models.Account, error) {
	var rows []accountRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+accountColumns+" FROM accounts ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]*models.Account, 0, len(rows))
	for _, row := range rows {
		a, err := row.toAccount()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s *SQLStore) SetToken(ctx context.Context, id, token string) error {
	return s.exec(ctx, "UPDATE accounts SET token = ?, updated_at = ? WHERE id = ?", token, s.now(), id)
}

func (s *SQLStore) SetRole(ctx context.Context, id string, role models.Role) error {
	return s.exec(ctx, "UPDATE accounts SET role = ?, updated_at = ? WHERE id = ?", string(role), s.now(), id)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, id string, changes models.AccountChanges) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	setParts := []string{}
	args := []interface{}{}

	if changes.Email != nil {
		setParts = append(setParts, "email = ?")
		args = append(args, *changes.Email)
	}
	if changes.Password != nil {
		setParts = append(setParts, "password = ?")
		args = append(args, *changes.Password)
	}
	for column, value := range map[string]*string{
		"first_name": changes.Profile.FirstName,
		"last_name":  changes.Profile.LastName,
		"image":      changes.Profile.Image,
		"country":    changes.Profile.Country,
	} {
		if value != nil {
			setParts = append(setParts, column+" = ?")
			args = append(args, *value)
		}
	}

	if len(changes.Profile.Extra) > 0 {
		lock := ""
		if s.postgres() {
			lock = " FOR UPDATE"
		}
		var current string
		err := tx.GetContext(ctx, &current, tx.Rebind("SELECT extra FROM accounts WHERE id = ?"+lock), id)
		if err == sql.ErrNoRows {
			return models.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("load extra fields: %w", err)
		}
		merged, err := decodeExtra(current)
		if err != nil {
			return err
		}
		if merged == nil {
			merged = make(map[string]interface{}, len(changes.Profile.Extra))
		}
		for k, v := range changes.Profile.Extra {
			merged[k] = v
		}
		encoded, err := encodeExtra(merged)
		if err != nil {
			return err
		}
		setParts = append(setParts, "extra = ?")
		args = append(args, encoded)
	}

	setParts = append(setParts, "updated_at = ?")
	args = append(args, s.now(), id)

	query := tx.Rebind("UPDATE accounts SET " + strings.Join(setParts, ", ") + " WHERE id = ?")
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected == 0 {
		return models.ErrAccountNotFound
	}
	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM accounts WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if affected == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (s *SQLStore) Close(ctx context.Context) error {
	return s.db.Close()
}
