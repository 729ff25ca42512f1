package postgres

import (
	"github.com/jmoiron/sqlx"
)

// BaseRepository holds the shared database handle for all repositories.
type BaseRepository struct {
	db *sqlx.DB
}

func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}
