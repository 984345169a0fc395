package pg

import (
	"github.com/jackc/pgx/v5"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.URL,
		&p.Bio,
		&p.IsPrivate,
		&p.FollowerCount,
		&p.FollowingCount,
		&p.PostCount,
		&p.Verified,
		&p.LastScrapedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(
		&p.ID,
		&p.ProfileID,
		&p.PostURL,
		&p.Caption,
		&p.LikeCount,
		&p.CommentCount,
		&p.ShareCount,
		&p.SaveCount,
		&p.PostedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanInteraction(row pgx.Row) (*domain.Interaction, error) {
	var (
		i               domain.Interaction
		interactionType string
	)
	err := row.Scan(
		&i.ID,
		&i.PostID,
		&i.ProfileID,
		&interactionType,
		&i.UserUsername,
		&i.UserURL,
		&i.UserBio,
		&i.UserIsPrivate,
		&i.CommentText,
		&i.CommentLikes,
		&i.CommentReplies,
		&i.AggregateCount,
		&i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Type = domain.InteractionType(interactionType)
	return &i, nil
}

// limitArg はLIMIT句の引数を返します。0 は NULL（全件）になります
func limitArg(page domain.Page) any {
	if page.Limit <= 0 {
		return nil
	}
	return page.Limit
}
