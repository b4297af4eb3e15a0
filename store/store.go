// Package store provides the gorm-backed persistence layer consumed by the
// alert and indicator services through their own narrow interfaces.
package store

import (
	"gorm.io/gorm"
)

// Store bundles all relational store operations over one gorm connection
type Store struct {
	db *gorm.DB
}

// New creates a store backed by the given database
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}
