package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository"
)

const campaignColumns = `id, product_name, description, category, image_url, regular_price, group_price,
	required_participants, current_participants, status, version, created_at, expires_at`

type campaignRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewCampaignRepository creates a Postgres-backed CampaignStore implementation.
func NewCampaignRepository(pool *pgxpool.Pool) repository.CampaignStore {
	return &campaignRepository{pool: pool, now: time.Now}
}

func (r *campaignRepository) List(ctx context.Context) ([]domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var (
		campaigns []domain.Campaign
		ids       []string
	)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, classify(err)
		}
		campaigns = append(campaigns, *c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	if len(ids) == 0 {
		return campaigns, nil
	}

	participants, err := loadParticipants(ctx, r.pool, ids)
	if err != nil {
		return nil, classify(err)
	}
	for i := range campaigns {
		campaigns[i].Participants = participants[campaigns[i].ID]
		campaigns[i].CurrentParticipants = len(campaigns[i].Participants)
	}
	return campaigns, nil
}

func (r *campaignRepository) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := getCampaign(ctx, r.pool, id, false)
	if err != nil {
		return nil, classify(err)
	}
	return c, nil
}

func (r *campaignRepository) Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error) {
	if campaign == nil || campaign.ID == "" {
		return nil, domain.ErrInvalidPayload
	}

	const insert = `
	INSERT INTO campaigns (id, product_name, description, category, image_url, regular_price, group_price,
		required_participants, current_participants, status, version, created_at, expires_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()), $13, NOW())
	ON CONFLICT (id) DO NOTHING
	`

	var stored *domain.Campaign
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insert,
			campaign.ID,
			campaign.ProductName,
			campaign.Description,
			campaign.Category,
			campaign.ImageURL,
			campaign.RegularPrice,
			campaign.GroupPrice,
			campaign.RequiredParticipants,
			len(campaign.Participants),
			string(campaign.Status),
			campaign.Version,
			nullTime(campaign.CreatedAt),
			nullTimePtr(campaign.ExpiresAt),
		)
		if err != nil {
			return err
		}
		// an existing row means a retried create; the stored state wins
		if tag.RowsAffected() == 1 {
			for _, p := range campaign.Participants {
				if err := insertParticipant(ctx, tx, campaign.ID, p); err != nil {
					return err
				}
			}
		}
		stored, err = getCampaign(ctx, tx, campaign.ID, false)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return stored, nil
}

func (r *campaignRepository) Update(ctx context.Context, id string, patch domain.Patch) (*domain.Campaign, error) {
	const update = `
	UPDATE campaigns
	SET product_name = $2,
		description = $3,
		category = $4,
		image_url = $5,
		regular_price = $6,
		group_price = $7,
		required_participants = $8,
		status = $9,
		expires_at = $10,
		version = version + 1,
		updated_at = NOW()
	WHERE id = $1
	RETURNING version
	`

	var updated *domain.Campaign
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := getCampaign(ctx, tx, id, true)
		if err != nil {
			return err
		}
		merged, err := patch.Apply(current, r.now())
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, update,
			id,
			merged.ProductName,
			merged.Description,
			merged.Category,
			merged.ImageURL,
			merged.RegularPrice,
			merged.GroupPrice,
			merged.RequiredParticipants,
			string(merged.Status),
			nullTimePtr(merged.ExpiresAt),
		).Scan(&merged.Version); err != nil {
			return err
		}
		updated = merged
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return updated, nil
}

func (r *campaignRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *campaignRepository) AddParticipant(ctx context.Context, campaignID string, participant domain.Participant) (*domain.Participant, error) {
	if participant.ID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = r.now()
	}

	const update = `
	UPDATE campaigns
	SET current_participants = $2,
		status = $3,
		version = version + 1,
		updated_at = NOW()
	WHERE id = $1
	`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := getCampaign(ctx, tx, campaignID, true)
		if err != nil {
			return err
		}
		if current.HasParticipant(participant.ID) {
			return nil
		}
		if participant.Name == "" {
			participant.Name = domain.ParticipantName(current.CurrentParticipants + 1)
		}
		if err := insertParticipant(ctx, tx, campaignID, participant); err != nil {
			return err
		}
		current.AddParticipant(participant)
		status := domain.DeriveStatus(*current, r.now())
		_, err = tx.Exec(ctx, update, campaignID, current.CurrentParticipants, string(status))
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return &participant, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getCampaign(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	c, err := scanCampaign(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	participants, err := loadParticipants(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	c.Participants = participants[id]
	c.CurrentParticipants = len(c.Participants)
	return c, nil
}

func loadParticipants(ctx context.Context, q querier, campaignIDs []string) (map[string][]domain.Participant, error) {
	const query = `
	SELECT campaign_id, id, name, joined_at
	FROM participants
	WHERE campaign_id = ANY($1)
	ORDER BY seq
	`
	rows, err := q.Query(ctx, query, campaignIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Participant, len(campaignIDs))
	for rows.Next() {
		var (
			campaignID string
			p          domain.Participant
		)
		if err := rows.Scan(&campaignID, &p.ID, &p.Name, &p.JoinedAt); err != nil {
			return nil, err
		}
		out[campaignID] = append(out[campaignID], p)
	}
	return out, rows.Err()
}

func insertParticipant(ctx context.Context, tx pgx.Tx, campaignID string, p domain.Participant) error {
	const query = `
	INSERT INTO participants (campaign_id, id, name, joined_at)
	VALUES ($1, $2, $3, COALESCE($4, NOW()))
	ON CONFLICT (campaign_id, id) DO NOTHING
	`
	_, err := tx.Exec(ctx, query, campaignID, p.ID, p.Name, nullTime(p.JoinedAt))
	return err
}

func scanCampaign(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Campaign, error) {
	var (
		c       domain.Campaign
		status  string
		expires *time.Time
	)

	if err := row.Scan(
		&c.ID,
		&c.ProductName,
		&c.Description,
		&c.Category,
		&c.ImageURL,
		&c.RegularPrice,
		&c.GroupPrice,
		&c.RequiredParticipants,
		&c.CurrentParticipants,
		&status,
		&c.Version,
		&c.CreatedAt,
		&expires,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}

	c.Status = domain.Status(status)
	c.ExpiresAt = expires
	return &c, nil
}
