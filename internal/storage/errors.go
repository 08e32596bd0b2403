package storage

import (
	"errors"

	"github.com/bull/campus-rag/internal/domain"
)

var (
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrCorruptSnapshot   = domain.ErrCorruptSnapshot
)
