// Package crm reads the legacy client directory that predates this service.
// It is strictly read-only: the service consults it to resolve display
// names for invited emails without an account, and to import known clients
// at startup. All writes stay in Mongo.
package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/google/uuid"

	"evsync/entity"
	"evsync/internal/config"
)

type Client struct {
	Email    string
	FullName string
	Phone    string
}

// UserFromClient builds a fresh account for an imported directory entry.
// The generated token is effectively a placeholder: the client cannot call
// the API until an admin hands the token over.
func UserFromClient(c *Client) *entity.User {
	return &entity.User{
		Id:           uuid.New().String(),
		Email:        c.Email,
		FullName:     c.FullName,
		PhoneNumber:  c.Phone,
		Token:        uuid.New().String(),
		Role:         entity.RoleUser,
		RegisteredAt: time.Now(),
	}
}

type MySql struct {
	db         *sql.DB
	prefix     string
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

func NewSQLClient(conf *config.Config) (*MySql, error) {
	if !conf.Crm.Enabled {
		return nil, fmt.Errorf("crm client is disabled in configuration")
	}
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		conf.Crm.User, conf.Crm.Password, conf.Crm.Host, conf.Crm.Port, conf.Crm.Database)
	db, err := sql.Open("mysql", connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 30-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i == 2 {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(30 * time.Second)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return &MySql{
		db:         db,
		prefix:     conf.Crm.Prefix,
		statements: make(map[string]*sql.Stmt),
	}, nil
}

func (s *MySql) Close() {
	s.mu.Lock()
	for _, stmt := range s.statements {
		_ = stmt.Close()
	}
	s.statements = make(map[string]*sql.Stmt)
	s.mu.Unlock()
	_ = s.db.Close()
}

func (s *MySql) prepare(key, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.statements[key]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", key, err)
	}
	s.statements[key] = stmt
	return stmt, nil
}

// ClientName resolves a display name for an email; empty when unknown.
func (s *MySql) ClientName(ctx context.Context, email string) (string, error) {
	c, err := s.ClientByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", nil
	}
	return c.FullName, nil
}

func (s *MySql) ClientByEmail(ctx context.Context, email string) (*Client, error) {
	query := fmt.Sprintf(
		"SELECT email, CONCAT(firstname, ' ', lastname), telephone FROM %sclient WHERE email = ? LIMIT 1",
		s.prefix)
	stmt, err := s.prepare("client_by_email", query)
	if err != nil {
		return nil, err
	}

	var c Client
	err = stmt.QueryRowContext(ctx, email).Scan(&c.Email, &c.FullName, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query client: %w", err)
	}
	return &c, nil
}

// ListClients returns the full directory, used by the startup import.
func (s *MySql) ListClients(ctx context.Context) ([]*Client, error) {
	query := fmt.Sprintf(
		"SELECT email, CONCAT(firstname, ' ', lastname), telephone FROM %sclient WHERE email <> ''",
		s.prefix)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		var c Client
		if err = rows.Scan(&c.Email, &c.FullName, &c.Phone); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, &c)
	}
	return clients, rows.Err()
}
