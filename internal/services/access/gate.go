package access

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
	"github.com/ivankudzin/tgdrop/internal/pkg/deeplink"
)

type BundleRepo interface {
	GetByID(context.Context, int64) (model.Bundle, error)
}

type Outcome int

const (
	OutcomeMalformed Outcome = iota + 1
	OutcomeNotFound
	OutcomeChallenge
	OutcomeDeliver
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeChallenge:
		return "challenge"
	case OutcomeDeliver:
		return "deliver"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome Outcome
	Token   deeplink.Token
	Bundle  model.Bundle
	// AdURL and UnlockLink are set for OutcomeChallenge.
	AdURL      string
	UnlockLink string
	// Acknowledge asks the caller to confirm the unlock before the content.
	Acknowledge bool
	// Expire is true when every message sent for this decision must be scheduled for deletion.
	Expire bool
}

type Config struct {
	AdminID     int64
	BotUsername string
	AdURL       string
}

type Gate struct {
	cfg    Config
	repo   BundleRepo
	logger *zap.Logger
}

func NewGate(cfg Config, repo BundleRepo, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{cfg: cfg, repo: repo, logger: logger}
}

func (g *Gate) IsAdmin(requesterID int64) bool {
	return g.cfg.AdminID != 0 && requesterID == g.cfg.AdminID
}

// Decide resolves a /start payload for a requester. Unlock tokens are honoured
// on presentation; the gate keeps no memory of issued challenges.
func (g *Gate) Decide(ctx context.Context, payload string, requesterID int64) (Decision, error) {
	token, err := deeplink.Decode(payload)
	if err != nil {
		g.logger.Warn("rejecting deep link payload",
			zap.Int64("user_id", requesterID),
			zap.String("payload", payload),
			zap.Error(err))
		return Decision{Outcome: OutcomeMalformed}, nil
	}

	isAdmin := g.IsAdmin(requesterID)
	decision := Decision{Token: token, Expire: !isAdmin}

	bundle, err := g.repo.GetByID(ctx, token.ContentID)
	if err != nil {
		if errors.Is(err, model.ErrBundleNotFound) {
			g.logger.Info("deep link points to unknown bundle",
				zap.Int64("user_id", requesterID),
				zap.Int64("bundle_id", token.ContentID),
				zap.Stringer("access", token.Access))
			return Decision{Outcome: OutcomeNotFound, Token: token}, nil
		}
		return Decision{}, fmt.Errorf("load bundle %d: %w", token.ContentID, err)
	}
	decision.Bundle = bundle

	switch {
	case isAdmin:
		decision.Outcome = OutcomeDeliver
	case token.Access == deeplink.Locked:
		decision.Outcome = OutcomeChallenge
		decision.AdURL = g.cfg.AdURL
		decision.UnlockLink = deeplink.Link(g.cfg.BotUsername, deeplink.UnlockedToken(bundle.ID))
	default:
		decision.Outcome = OutcomeDeliver
		decision.Acknowledge = true
	}

	g.logger.Debug("access decision",
		zap.Int64("user_id", requesterID),
		zap.Int64("bundle_id", bundle.ID),
		zap.Stringer("outcome", decision.Outcome))
	return decision, nil
}
