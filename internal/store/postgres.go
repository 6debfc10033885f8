package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jw6ventures/volunteerportal/internal/portal"
)

// userRepo implements UserRepository.
type userRepo struct {
	db querier
}

const userColumns = `id, oauth_subject, primary_email, office_id, is_admin, created_at, last_login_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.OAuthSubject, &u.PrimaryEmail, &u.OfficeID, &u.Admin, &u.CreatedAt, &u.LastLoginAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) UpsertOAuthUser(ctx context.Context, subject, email string, admin bool) (_ *User, err error) {
	defer observeDB(ctx, "users.upsert", &err)()
	const q = `INSERT INTO users (oauth_subject, primary_email, is_admin)
VALUES ($1, $2, $3)
ON CONFLICT (oauth_subject) DO UPDATE
SET primary_email = EXCLUDED.primary_email,
    is_admin = users.is_admin OR EXCLUDED.is_admin,
    last_login_at = NOW()
RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, q, subject, strings.ToLower(email), admin))
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (_ *User, err error) {
	defer observeDB(ctx, "users.get_by_id", &err)()
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (_ *User, err error) {
	defer observeDB(ctx, "users.get_by_email", &err)()
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE primary_email = $1`, strings.ToLower(email)))
}

// apiTokenRepo implements APITokenRepository.
type apiTokenRepo struct {
	db querier
}

const tokenColumns = `id, user_id, label, token_hash, created_at, expires_at, revoked_at, last_used_at`

func scanToken(row pgx.Row) (*APIToken, error) {
	var t APIToken
	if err := row.Scan(&t.ID, &t.UserID, &t.Label, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *apiTokenRepo) Create(ctx context.Context, token APIToken) (_ *APIToken, err error) {
	defer observeDB(ctx, "api_tokens.create", &err)()
	const q = `INSERT INTO api_tokens (user_id, label, token_hash, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + tokenColumns
	return scanToken(r.db.QueryRow(ctx, q, token.UserID, token.Label, token.TokenHash, token.ExpiresAt))
}

func (r *apiTokenRepo) listTokens(ctx context.Context, q string, args ...any) ([]APIToken, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []APIToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

func (r *apiTokenRepo) ListActiveByUser(ctx context.Context, userID int64) (_ []APIToken, err error) {
	defer observeDB(ctx, "api_tokens.list_active", &err)()
	return r.listTokens(ctx, `SELECT `+tokenColumns+` FROM api_tokens
WHERE user_id = $1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > NOW())
ORDER BY id`, userID)
}

func (r *apiTokenRepo) ListByUser(ctx context.Context, userID int64) (_ []APIToken, err error) {
	defer observeDB(ctx, "api_tokens.list", &err)()
	return r.listTokens(ctx, `SELECT `+tokenColumns+` FROM api_tokens WHERE user_id = $1 ORDER BY id DESC`, userID)
}

func (r *apiTokenRepo) Revoke(ctx context.Context, userID, id int64) (err error) {
	defer observeDB(ctx, "api_tokens.revoke", &err)()
	tag, err := r.db.Exec(ctx, `UPDATE api_tokens SET revoked_at = NOW() WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *apiTokenRepo) TouchLastUsed(ctx context.Context, id int64) (err error) {
	defer observeDB(ctx, "api_tokens.touch", &err)()
	_, err = r.db.Exec(ctx, `UPDATE api_tokens SET last_used_at = NOW() WHERE id = $1`, id)
	return err
}

// lookupRepo implements LookupRepository.
type lookupRepo struct {
	db querier
}

func (r *lookupRepo) ListOffices(ctx context.Context) (_ []portal.Office, err error) {
	defer observeDB(ctx, "lookups.offices", &err)()
	return collectNamed(ctx, r.db, `SELECT id, name FROM offices ORDER BY name`, func(id int64, name string) portal.Office {
		return portal.Office{ID: id, Name: name}
	})
}

func (r *lookupRepo) ListEventTypes(ctx context.Context) (_ []portal.EventType, err error) {
	defer observeDB(ctx, "lookups.event_types", &err)()
	return collectNamed(ctx, r.db, `SELECT id, title FROM event_types ORDER BY title`, func(id int64, title string) portal.EventType {
		return portal.EventType{ID: id, Title: title}
	})
}

func (r *lookupRepo) ListOrganizations(ctx context.Context) (_ []portal.Organization, err error) {
	defer observeDB(ctx, "lookups.organizations", &err)()
	return collectNamed(ctx, r.db, `SELECT id, name FROM organizations ORDER BY name`, func(id int64, name string) portal.Organization {
		return portal.Organization{ID: id, Name: name}
	})
}

func collectNamed[T any](ctx context.Context, db querier, q string, build func(int64, string) T) ([]T, error) {
	rows, err := db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out = append(out, build(id, name))
	}
	return out, rows.Err()
}

// individualEventRepo implements IndividualEventRepository.
type individualEventRepo struct {
	db querier
}

const individualEventSelect = `SELECT ie.id, ie.description, ie.event_date, ie.duration_minutes, ie.status,
       o.id, o.name, et.id, et.title, org.id, org.name
FROM individual_events ie
JOIN offices o ON o.id = ie.office_id
JOIN event_types et ON et.id = ie.event_type_id
JOIN organizations org ON org.id = ie.organization_id`

func scanIndividualEvent(row pgx.Row) (*portal.IndividualEvent, error) {
	var (
		e      portal.IndividualEvent
		office portal.Office
		et     portal.EventType
		org    portal.Organization
		status string
	)
	if err := row.Scan(&e.ID, &e.Description, &e.Date, &e.Duration, &status,
		&office.ID, &office.Name, &et.ID, &et.Title, &org.ID, &org.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Status = portal.Status(status).Normalize()
	e.Office = &office
	e.EventType = &et
	e.Organization = &org
	return &e, nil
}

func (r *individualEventRepo) ListByUser(ctx context.Context, userID int64) (_ []portal.IndividualEvent, err error) {
	defer observeDB(ctx, "individual_events.list", &err)()
	rows, err := r.db.Query(ctx, individualEventSelect+` WHERE ie.user_id = $1 ORDER BY ie.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []portal.IndividualEvent{}
	for rows.Next() {
		e, err := scanIndividualEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *individualEventRepo) GetByID(ctx context.Context, userID, id int64) (_ *portal.IndividualEvent, err error) {
	defer observeDB(ctx, "individual_events.get", &err)()
	return scanIndividualEvent(r.db.QueryRow(ctx, individualEventSelect+` WHERE ie.user_id = $1 AND ie.id = $2`, userID, id))
}

func (r *individualEventRepo) Save(ctx context.Context, userID int64, in portal.IndividualEventInput) (_ *portal.IndividualEvent, err error) {
	defer observeDB(ctx, "individual_events.save", &err)()
	date := in.Date.UTC().Truncate(24 * time.Hour)

	id := in.ID
	if in.IsNew() {
		const q = `INSERT INTO individual_events
    (user_id, description, office_id, event_date, duration_minutes, event_type_id, organization_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
		if err := r.db.QueryRow(ctx, q, userID, in.Description, in.OfficeID, date, in.Duration, in.EventTypeID, in.OrganizationID).Scan(&id); err != nil {
			return nil, mapWriteError(err)
		}
	} else {
		const q = `UPDATE individual_events
SET description = $3, office_id = $4, event_date = $5, duration_minutes = $6,
    event_type_id = $7, organization_id = $8, status = 'PENDING', updated_at = NOW()
WHERE id = $1 AND user_id = $2`
		tag, err := r.db.Exec(ctx, q, in.ID, userID, in.Description, in.OfficeID, date, in.Duration, in.EventTypeID, in.OrganizationID)
		if err != nil {
			return nil, mapWriteError(err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrNotFound
		}
	}
	return r.GetByID(ctx, userID, id)
}

func (r *individualEventRepo) Delete(ctx context.Context, userID, id int64) (err error) {
	defer observeDB(ctx, "individual_events.delete", &err)()
	tag, err := r.db.Exec(ctx, `DELETE FROM individual_events WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// eventRepo implements EventRepository.
type eventRepo struct {
	db querier
}

const eventSelect = `SELECT e.id, e.title, e.description, e.starts_at, e.ends_at, e.capacity,
       o.id, o.name, org.id, org.name, et.id, et.title,
       (SELECT COUNT(*) FROM event_signups s WHERE s.event_id = e.id) AS signup_count
FROM events e
JOIN offices o ON o.id = e.office_id
JOIN organizations org ON org.id = e.organization_id
JOIN event_types et ON et.id = e.event_type_id`

func scanEvent(row pgx.Row) (*portal.Event, error) {
	var (
		e      portal.Event
		office portal.Office
		org    portal.Organization
		et     portal.EventType
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt, &e.Capacity,
		&office.ID, &office.Name, &org.ID, &org.Name, &et.ID, &et.Title, &e.SignupCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Office = &office
	e.Organization = &org
	e.EventType = &et
	return &e, nil
}

var eventOrderColumns = map[portal.EventSort]string{
	portal.SortStartsAtDesc:     `e.starts_at DESC`,
	portal.SortStartsAtAsc:      `e.starts_at ASC`,
	portal.SortTitleAsc:         `lower(e.title) ASC`,
	portal.SortTitleDesc:        `lower(e.title) DESC`,
	portal.SortOrganizationAsc:  `lower(org.name) ASC`,
	portal.SortOrganizationDesc: `lower(org.name) DESC`,
	portal.SortDurationAsc:      `(e.ends_at - e.starts_at) ASC`,
	portal.SortDurationDesc:     `(e.ends_at - e.starts_at) DESC`,
	portal.SortParticipantsAsc:  `signup_count ASC`,
	portal.SortParticipantsDesc: `signup_count DESC`,
}

// orderClause whitelists sort values; anything unknown sorts newest first.
// Ties break on id in the same direction.
func orderClause(sort string) string {
	s := portal.ParseEventSort(sort)
	tie := `e.id DESC`
	if strings.HasSuffix(string(s), "_ASC") {
		tie = `e.id ASC`
	}
	return ` ORDER BY ` + eventOrderColumns[s] + `, ` + tie
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches s anywhere, treating LIKE metacharacters literally.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func eventWhere(filter EventFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.OfficeID != nil {
		args = append(args, *filter.OfficeID)
		conds = append(conds, fmt.Sprintf(`e.office_id = $%d`, len(args)))
	}
	if t := strings.TrimSpace(filter.Title); t != "" {
		args = append(args, likePattern(t))
		conds = append(conds, fmt.Sprintf(`e.title ILIKE $%d`, len(args)))
	}
	if o := strings.TrimSpace(filter.Organization); o != "" {
		args = append(args, likePattern(o))
		conds = append(conds, fmt.Sprintf(`org.name ILIKE $%d`, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func (r *eventRepo) List(ctx context.Context, filter EventFilter) (_ []portal.Event, err error) {
	defer observeDB(ctx, "events.list", &err)()
	where, args := eventWhere(filter)
	q := eventSelect + where + orderClause(filter.Sort)

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []portal.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *eventRepo) GetByID(ctx context.Context, id int64) (_ *portal.Event, err error) {
	defer observeDB(ctx, "events.get", &err)()
	return scanEvent(r.db.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id))
}

func (r *eventRepo) Delete(ctx context.Context, id int64) (_ *portal.Event, err error) {
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	defer observeDB(ctx, "events.delete", &err)()
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete event %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return event, nil
}
