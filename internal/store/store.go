// Package store persists contacts pulled from the VRM API into a SQLite
// database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"thde.io/vrm"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	con_id    TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	address   TEXT,
	city      TEXT,
	zip       TEXT,
	zip4      TEXT,
	county    TEXT,
	precinct  INTEGER,
	cd        INTEGER,
	ld        INTEGER,
	age       INTEGER,
	dob       TEXT,
	gender    TEXT,
	voter_id  TEXT,
	lat       REAL,
	long      REAL,
	synced_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fields (
	con_id       TEXT NOT NULL REFERENCES contacts(con_id) ON DELETE CASCADE,
	bucket_id    INTEGER NOT NULL,
	bucket_title TEXT,
	field_id     INTEGER,
	name         TEXT NOT NULL,
	label        TEXT,
	type         TEXT,
	value        TEXT,
	PRIMARY KEY (con_id, bucket_id, name)
);
`

// Source is the part of the API client used by [Store.Export].
type Source interface {
	ContactsIter(ctx context.Context, q vrm.ContactsQuery) iter.Seq2[vrm.Contact, error]
	ContactDetail(ctx context.Context, id vrm.ContactID) (*vrm.ContactDetail, error)
}

// Store is a SQLite backed contact store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer; in-memory databases also need a single
	// connection to stay visible.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveContact upserts a contact. If detail is not nil, the stored field
// values of the contact are replaced by the ones in detail.
func (s *Store) SaveContact(ctx context.Context, c vrm.Contact, detail *vrm.ContactDetail) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var dob any
	if !c.DateOfBirth.IsZero() {
		dob = c.DateOfBirth.Format(time.DateOnly)
	}
	var lat, long any
	if !c.Location.IsZero() {
		lat, long = c.Location.Lat, c.Location.Long
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contacts (con_id, name, address, city, zip, zip4, county, precinct, cd, ld, age, dob, gender, voter_id, lat, long, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(con_id) DO UPDATE SET
			name = excluded.name, address = excluded.address, city = excluded.city,
			zip = excluded.zip, zip4 = excluded.zip4, county = excluded.county,
			precinct = excluded.precinct, cd = excluded.cd, ld = excluded.ld,
			age = excluded.age, dob = excluded.dob, gender = excluded.gender,
			voter_id = excluded.voter_id, lat = excluded.lat, long = excluded.long,
			synced_at = excluded.synced_at`,
		string(c.ContactID), c.Name, c.Address, c.City, c.Zip, c.Zip4, c.County,
		c.PrecinctNumber, c.CongressionalDistrict, c.LegislativeDistrict, c.Age,
		dob, c.Gender, c.StateVoterID, lat, long, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save contact %s: %w", c.ContactID, err)
	}

	if detail != nil {
		if err = saveFields(ctx, tx, c.ContactID, detail); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func saveFields(ctx context.Context, tx *sql.Tx, id vrm.ContactID, detail *vrm.ContactDetail) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM fields WHERE con_id = ?", string(id)); err != nil {
		return fmt.Errorf("clear fields of %s: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fields (con_id, bucket_id, bucket_title, field_id, name, label, type, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, bucket := range detail.Buckets() {
		group := detail.FieldsByBucket[bucket]
		for f := range group.All() {
			_, err := stmt.ExecContext(ctx,
				string(id), int(bucket), group.Title, int(f.ID), f.Name, f.Label, string(f.Type), f.Value,
			)
			if err != nil {
				return fmt.Errorf("save field %s of %s: %w", f.Name, id, err)
			}
		}
	}

	return nil
}

// Export pulls every contact matching q from src and saves it. With
// details set, the custom fields of each contact are fetched and saved too.
// Contacts saved before an error stay in the store.
func (s *Store) Export(ctx context.Context, src Source, q vrm.ContactsQuery, details bool) (int, error) {
	n := 0
	for c, err := range src.ContactsIter(ctx, q) {
		if err != nil {
			return n, fmt.Errorf("list contacts: %w", err)
		}

		var detail *vrm.ContactDetail
		if details {
			detail, err = src.ContactDetail(ctx, c.ContactID)
			if err != nil {
				return n, fmt.Errorf("contact %s: %w", c.ContactID, err)
			}
		}

		if err := s.SaveContact(ctx, c, detail); err != nil {
			return n, err
		}
		n++

		s.logger.DebugContext(ctx, "contact exported", slog.String("con_id", string(c.ContactID)))
	}

	s.logger.InfoContext(ctx, "export completed", slog.Int("contacts", n))
	return n, nil
}

// CountContacts returns the number of stored contacts.
func (s *Store) CountContacts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts").Scan(&n)
	return n, err
}

// FieldValue returns the stored value of a contact field.
func (s *Store) FieldValue(ctx context.Context, id vrm.ContactID, bucket vrm.BucketID, name string) (string, error) {
	var v sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM fields WHERE con_id = ? AND bucket_id = ? AND name = ?",
		string(id), int(bucket), name,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("field %s of %s: %w", name, id, vrm.ErrNotFound)
	}
	return v.String, err
}
