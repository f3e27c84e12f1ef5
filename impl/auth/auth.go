package auth

import (
	"context"
	"fmt"

	"evsync/entity"
)

type Database interface {
	GetUser(ctx context.Context, token string) (*entity.User, error)
}

type Auth struct {
	db Database
}

func New(db Database) *Auth {
	return &Auth{db: db}
}

func (a *Auth) UserByToken(ctx context.Context, token string) (*entity.User, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	user, err := a.db.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("token not registered")
	}
	return user, nil
}
