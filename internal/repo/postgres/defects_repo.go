package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefectsRepo stores defects in one row each; admin comments and
// notifications are JSONB arrays on that row so every mutation is a single
// UPDATE.
type DefectsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDefectsRepo(pool *pgxpool.Pool, prom *observability.Prom) *DefectsRepo {
	return &DefectsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *DefectsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(observability.BackendPostgres, op, fn)
}

const defectColumns = `id, owner_id, title, description, type, status, location_text, latitude, longitude,
	images, upvotes, admin_comments, notifications, created_at, updated_at`

func scanDefect(row pgx.Row, extra ...any) (defect.Defect, error) {
	var d defect.Defect

	dest := []any{
		&d.ID,
		&d.OwnerID,
		&d.Title,
		&d.Description,
		&d.Type,
		&d.Status,
		&d.Location.Text,
		&d.Location.Latitude,
		&d.Location.Longitude,
		&d.Images,
		&d.Upvotes,
		&d.AdminComments,
		&d.Notifications,
		&d.CreatedAt,
		&d.UpdatedAt,
	}

	if err := row.Scan(append(dest, extra...)...); err != nil {
		return defect.Defect{}, err
	}

	if d.Images == nil {
		d.Images = []string{}
	}
	if d.AdminComments == nil {
		d.AdminComments = []defect.AdminComment{}
	}
	if d.Notifications == nil {
		d.Notifications = []defect.Notification{}
	}
	return d, nil
}

func (r *DefectsRepo) Create(ctx context.Context, d defect.Defect) error {
	comments, err := json.Marshal(d.AdminComments)
	if err != nil {
		return err
	}
	notifs, err := json.Marshal(d.Notifications)
	if err != nil {
		return err
	}

	return r.observe("defects.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO defects (`+defectColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::jsonb,$13::jsonb,$14,$15)`,
			d.ID, d.OwnerID, d.Title, d.Description, string(d.Type), string(d.Status),
			d.Location.Text, d.Location.Latitude, d.Location.Longitude,
			d.Images, d.Upvotes, string(comments), string(notifs), d.CreatedAt, d.UpdatedAt,
		)
		return err
	})
}

func (r *DefectsRepo) GetByID(ctx context.Context, id string) (defect.Defect, error) {
	var d defect.Defect

	err := r.observe("defects.get_by_id", func() error {
		var err error
		d, err = scanDefect(r.pool.QueryRow(ctx, `SELECT `+defectColumns+` FROM defects WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defect.Defect{}, defect.ErrNotFound
		}
		return defect.Defect{}, err
	}
	return d, nil
}

func listConditions(f defect.ListFilter) (string, []any) {
	var conds []string
	var args []any

	argsPosition := 1

	if f.OwnerID != "" {
		conds = append(conds, fmt.Sprintf("owner_id = $%d", argsPosition))
		args = append(args, f.OwnerID)
		argsPosition++
	}

	if f.Search != "" {
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, argsPosition, argsPosition))
		args = append(args, likePattern(f.Search))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *DefectsRepo) List(ctx context.Context, f defect.ListFilter) ([]defect.Defect, int, error) {
	where, args := listConditions(f)

	// stable ordering for pagination
	query := `SELECT ` + defectColumns + `, COUNT(*) OVER() AS total FROM defects` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	output := make([]defect.Defect, 0, f.Limit)
	total := 0

	err := r.observe("defects.list", func() error {
		rows, err := r.pool.Query(ctx, query, append(args, f.Limit, f.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			d, err := scanDefect(rows, &t)
			if err != nil {
				return err
			}
			total = t
			output = append(output, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	// window count is unavailable when the page is past the end
	if len(output) == 0 && f.Offset > 0 {
		err = r.observe("defects.count", func() error {
			return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM defects`+where, args...).Scan(&total)
		})
		if err != nil {
			return nil, 0, err
		}
	}

	return output, total, nil
}

func (r *DefectsRepo) updateReturning(ctx context.Context, op, query string, args ...any) (defect.Defect, error) {
	var d defect.Defect

	err := r.observe(op, func() error {
		var err error
		d, err = scanDefect(r.pool.QueryRow(ctx, query+` RETURNING `+defectColumns, args...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defect.Defect{}, defect.ErrNotFound
		}
		return defect.Defect{}, err
	}
	return d, nil
}

func (r *DefectsRepo) Update(ctx context.Context, id string, p defect.Patch) (defect.Defect, error) {
	var typ *string
	if p.Type != nil {
		s := string(*p.Type)
		typ = &s
	}

	var (
		locText     *string
		lat, lng    *float64
		hasLocation = p.Location != nil
	)
	if hasLocation {
		locText = &p.Location.Text
		lat = p.Location.Latitude
		lng = p.Location.Longitude
	}

	return r.updateReturning(ctx, "defects.update",
		`UPDATE defects
			SET title = COALESCE($2, title),
				description = COALESCE($3, description),
				type = COALESCE($4, type),
				location_text = CASE WHEN $5::boolean THEN $6 ELSE location_text END,
				latitude = CASE WHEN $5::boolean THEN $7 ELSE latitude END,
				longitude = CASE WHEN $5::boolean THEN $8 ELSE longitude END,
				updated_at = $9
		WHERE id = $1`,
		id, p.Title, p.Description, typ, hasLocation, locText, lat, lng, time.Now().UTC(),
	)
}

func (r *DefectsRepo) SetStatus(ctx context.Context, id string, status defect.Status) (defect.Defect, error) {
	return r.updateReturning(ctx, "defects.set_status",
		`UPDATE defects SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
}

// AppendComment appends both entries in one statement so a reader never sees
// a comment without its notification.
func (r *DefectsRepo) AppendComment(ctx context.Context, id string, c defect.AdminComment, n defect.Notification) (defect.Defect, error) {
	comment, err := json.Marshal([]defect.AdminComment{c})
	if err != nil {
		return defect.Defect{}, err
	}
	notif, err := json.Marshal([]defect.Notification{n})
	if err != nil {
		return defect.Defect{}, err
	}

	return r.updateReturning(ctx, "defects.append_comment",
		`UPDATE defects
			SET admin_comments = admin_comments || $2::jsonb,
				notifications = notifications || $3::jsonb,
				updated_at = $4
		WHERE id = $1`,
		id, string(comment), string(notif), c.CreatedAt,
	)
}

func (r *DefectsRepo) MarkNotificationsRead(ctx context.Context, id string) (defect.Defect, error) {
	d, err := r.updateReturning(ctx, "defects.mark_read",
		`UPDATE defects
			SET notifications = (
					SELECT COALESCE(jsonb_agg(n || '{"read": true}'::jsonb ORDER BY ord), '[]'::jsonb)
					FROM jsonb_array_elements(notifications) WITH ORDINALITY AS t(n, ord)
				),
				updated_at = $2
		WHERE id = $1 AND notifications @> '[{"read": false}]'::jsonb`,
		id, time.Now().UTC(),
	)

	// nothing unread (or no such defect): report the current state
	if errors.Is(err, defect.ErrNotFound) {
		return r.GetByID(ctx, id)
	}
	return d, err
}

func (r *DefectsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.observe("defects.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM defects WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return defect.ErrNotFound
	}
	return nil
}

func (r *DefectsRepo) SuggestionSources(ctx context.Context, q, ownerID string, limit int) ([]defect.SuggestionSource, error) {
	out := make([]defect.SuggestionSource, 0, limit)

	err := r.observe("defects.suggestions", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT title, location_text, type
			FROM defects
			WHERE ($2::text = '' OR owner_id::text = $2::text)
			  AND (title ILIKE $1 ESCAPE '\' OR location_text ILIKE $1 ESCAPE '\' OR type ILIKE $1 ESCAPE '\')
			ORDER BY created_at DESC, id DESC
			LIMIT $3`,
			likePattern(q), ownerID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s defect.SuggestionSource
			if err := rows.Scan(&s.Title, &s.LocationText, &s.Type); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})

	return out, err
}

func (r *DefectsRepo) UnreadSummary(ctx context.Context, ownerID string) (defect.UnreadSummary, error) {
	out := defect.UnreadSummary{Defects: []defect.UnreadCount{}}

	err := r.observe("defects.unread_summary", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, title,
				(SELECT COUNT(*) FROM jsonb_array_elements(notifications) AS n
				 WHERE NOT COALESCE((n->>'read')::boolean, false)) AS unread
			FROM defects
			WHERE owner_id = $1 AND notifications @> '[{"read": false}]'::jsonb
			ORDER BY created_at DESC, id DESC`,
			ownerID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c defect.UnreadCount
			if err := rows.Scan(&c.DefectID, &c.Title, &c.Unread); err != nil {
				return err
			}
			out.Total += c.Unread
			out.Defects = append(out.Defects, c)
		}
		return rows.Err()
	})

	return out, err
}
