package store

import (
	"database/sql"
	"errors"

	"github.com/ayusman/sugoi/internal/profile"
	"github.com/ayusman/sugoi/internal/protocol"
)

// ProfileRepository provides CRUD operations for game profiles. It implements profile.Store.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

const profileColumns = `identity, exe_name, exe_path, exe_size, selector_kind, code, hook_id, label, sample, engine, last_used`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*profile.Profile, error) {
	p := &profile.Profile{}
	var identity, kind, engine string

	err := row.Scan(&identity, &p.ExeName, &p.ExePath, &p.ExeSize, &kind,
		&p.Selector.Code, &p.Selector.HookID, &p.Selector.Label, &p.Selector.Sample,
		&engine, &p.LastUsed)
	if err != nil {
		return nil, err
	}

	p.Identity = profile.Identity(identity)
	p.Selector.Kind = profile.SelectorKind(kind)
	p.Variant = protocol.Variant(engine)
	return p, nil
}

// Get retrieves the profile for id. It returns nil, nil when none exists.
func (r *ProfileRepository) Get(id profile.Identity) (*profile.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		`SELECT `+profileColumns+` FROM game_profiles WHERE identity = ?`, string(id),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Save inserts or replaces a profile.
func (r *ProfileRepository) Save(p *profile.Profile) error {
	_, err := r.db.Exec(
		`INSERT INTO game_profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
			exe_name = excluded.exe_name,
			exe_path = excluded.exe_path,
			exe_size = excluded.exe_size,
			selector_kind = excluded.selector_kind,
			code = excluded.code,
			hook_id = excluded.hook_id,
			label = excluded.label,
			sample = excluded.sample,
			engine = excluded.engine,
			last_used = excluded.last_used`,
		string(p.Identity), p.ExeName, p.ExePath, p.ExeSize, string(p.Selector.Kind),
		p.Selector.Code, p.Selector.HookID, p.Selector.Label, p.Selector.Sample,
		string(p.Variant), p.LastUsed.UTC(),
	)
	return err
}

// List retrieves all profiles, most recently used first.
func (r *ProfileRepository) List() ([]profile.Profile, error) {
	rows, err := r.db.Query(`SELECT ` + profileColumns + ` FROM game_profiles ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// Delete removes the profile for id.
func (r *ProfileRepository) Delete(id profile.Identity) error {
	result, err := r.db.Exec(`DELETE FROM game_profiles WHERE identity = ?`, string(id))
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
