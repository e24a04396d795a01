package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, owner_id, filename, content_type, raw_text, storage_key, supersedes_id, created_at`

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.OwnerID, d.Filename, d.ContentType, d.RawText, nullableString(d.StorageKey), nullableString(d.SupersedesID), d.CreatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if !isUUID(id) {
		return nil, domain.ErrDocumentNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (r *DocumentRepository) FindLatestByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE owner_id = $1 AND filename = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		ownerID, filename,
	)
	return scanDocument(row)
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var storageKey, supersedesID *string
	err := row.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.ContentType, &d.RawText, &storageKey, &supersedesID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if storageKey != nil {
		d.StorageKey = *storageKey
	}
	if supersedesID != nil {
		d.SupersedesID = *supersedesID
	}
	return &d, nil
}
