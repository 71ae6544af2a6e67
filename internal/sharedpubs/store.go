package sharedpubs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// ErrMissingID is returned when either researcher id is empty.
var ErrMissingID = errors.New("sharedpubs: both researcher ids are required")

const sharedQuery = `
	SELECT COALESCE(title, ''),
		COALESCE(journal, ''),
		COALESCE(year_published::text, ''),
		COALESCE(author_names, '{}'),
		COALESCE(link, '')
	FROM publication_data
	WHERE $1 = ANY(author_ids) AND $2 = ANY(author_ids)
`

// Querier runs a query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads publications from the publication database.
type Store struct {
	db    Querier
	close func()
}

// NewStore wraps an existing querier.
func NewStore(db Querier) *Store {
	return &Store{db: db, close: func() {}}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.close()
}

// Shared returns the publications whose author ids include both researchers.
func (s *Store) Shared(ctx context.Context, id1, id2 string) ([]types.Publication, error) {
	if id1 == "" || id2 == "" {
		return nil, ErrMissingID
	}
	rows, err := s.db.Query(ctx, sharedQuery, id1, id2)
	if err != nil {
		return nil, fmt.Errorf("querying shared publications: %w", err)
	}
	defer rows.Close()

	pubs := []types.Publication{}
	for rows.Next() {
		var p types.Publication
		if err := rows.Scan(&p.Title, &p.Journal, &p.YearPublished, &p.Authors, &p.Link); err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}
		pubs = append(pubs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading publications: %w", err)
	}
	return pubs, nil
}
