package uploads

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

type BundleRepo interface {
	Create(context.Context, model.NewBundle) (model.Bundle, error)
	GetByID(context.Context, int64) (model.Bundle, error)
}

var (
	ErrNotAdmin          = errors.New("uploads: actor is not the administrator")
	ErrInvalidVideoCount = errors.New("uploads: video count must be a number between 1 and 10")
	ErrNoSession         = errors.New("uploads: no upload session in progress")
	ErrWrongStage        = errors.New("uploads: media does not match the session stage")
	ErrNothingToPublish  = errors.New("uploads: no committed bundle is waiting for publication")
)

// IsValidation reports whether err is a corrective, user-facing error that left state untouched.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidVideoCount) ||
		errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrWrongStage) ||
		errors.Is(err, ErrNothingToPublish)
}

type VideoProgress struct {
	Current   int
	Required  int
	Committed bool
	Bundle    model.Bundle
	Session   model.UploadSession
}

type Service struct {
	adminID  int64
	repo     BundleRepo
	sessions *SessionStore
	logger   *zap.Logger
}

func NewService(adminID int64, repo BundleRepo, sessions *SessionStore, logger *zap.Logger) *Service {
	if sessions == nil {
		sessions = NewSessionStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		adminID:  adminID,
		repo:     repo,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *Service) IsAdmin(actorID int64) bool {
	return s.adminID != 0 && actorID == s.adminID
}

// ParseVideoCount reads the optional /start_upload argument. Empty means one video.
func ParseVideoCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.MinBundleVideos, nil
	}
	// Canonical decimal only: no sign and no leading zero.
	if raw[0] < '1' || raw[0] > '9' {
		return 0, ErrInvalidVideoCount
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrInvalidVideoCount
	}
	if count < model.MinBundleVideos || count > model.MaxBundleVideos {
		return 0, ErrInvalidVideoCount
	}
	return count, nil
}

// Start discards any session of the admin and opens a new one waiting for the cover.
func (s *Service) Start(ctx context.Context, actorID int64, rawCount string) (model.UploadSession, error) {
	if !s.IsAdmin(actorID) {
		return model.UploadSession{}, ErrNotAdmin
	}
	count, err := ParseVideoCount(rawCount)
	if err != nil {
		return model.UploadSession{}, err
	}

	unlock := s.sessions.Lock(actorID)
	defer unlock()

	if prev, ok := s.sessions.Get(actorID); ok {
		s.logger.Info("discarding previous upload session",
			zap.Int64("user_id", actorID),
			zap.String("stage", string(prev.Stage)),
			zap.Int64("bundle_id", prev.BundleID))
	}

	session := model.UploadSession{
		AdminID:        actorID,
		RequiredVideos: count,
		Stage:          model.StageAwaitingCover,
	}
	s.sessions.Put(session)
	return session, nil
}

func (s *Service) SubmitCover(ctx context.Context, actorID int64, cover model.MediaRef, originMessageID int) (model.UploadSession, error) {
	if !s.IsAdmin(actorID) {
		return model.UploadSession{}, ErrNotAdmin
	}

	unlock := s.sessions.Lock(actorID)
	defer unlock()

	session, ok := s.sessions.Get(actorID)
	if !ok {
		return model.UploadSession{}, ErrNoSession
	}
	if session.Stage != model.StageAwaitingCover {
		return session, ErrWrongStage
	}

	session.CoverRef = cover
	session.OriginMessageID = originMessageID
	session.Stage = model.StageAwaitingVideos
	s.sessions.Put(session)
	return session, nil
}

// SubmitVideo appends a video and commits the bundle once the required count
// is reached. A failed commit leaves the session as it was before the call.
func (s *Service) SubmitVideo(ctx context.Context, actorID int64, video model.MediaRef, messageID int) (VideoProgress, error) {
	if !s.IsAdmin(actorID) {
		return VideoProgress{}, ErrNotAdmin
	}

	unlock := s.sessions.Lock(actorID)
	defer unlock()

	session, ok := s.sessions.Get(actorID)
	if !ok {
		return VideoProgress{}, ErrNoSession
	}
	progress := VideoProgress{
		Current:  len(session.VideoRefs),
		Required: session.RequiredVideos,
		Session:  session,
	}
	if session.Stage != model.StageAwaitingVideos {
		return progress, ErrWrongStage
	}

	next := session.Clone()
	next.VideoRefs = append(next.VideoRefs, video)
	if messageID != 0 {
		next.VideoMessageIDs = append(next.VideoMessageIDs, messageID)
	}
	progress.Current = len(next.VideoRefs)

	if len(next.VideoRefs) < next.RequiredVideos {
		s.sessions.Put(next)
		progress.Session = next.Clone()
		return progress, nil
	}

	bundle, err := s.repo.Create(ctx, model.NewBundle{
		CoverRef:  next.CoverRef,
		VideoRefs: next.VideoRefs,
	})
	if err != nil {
		progress.Current = len(session.VideoRefs)
		return progress, fmt.Errorf("commit bundle: %w", err)
	}

	next.Stage = model.StageAwaitingPublish
	next.BundleID = bundle.ID
	s.sessions.Put(next)

	s.logger.Info("bundle committed",
		zap.Int64("bundle_id", bundle.ID),
		zap.Int("videos", len(bundle.VideoRefs)))

	progress.Committed = true
	progress.Bundle = bundle
	progress.Session = next.Clone()
	return progress, nil
}

// PendingPublication returns the committed bundle whose channel post has not succeeded yet.
func (s *Service) PendingPublication(ctx context.Context, actorID int64) (model.UploadSession, model.Bundle, error) {
	if !s.IsAdmin(actorID) {
		return model.UploadSession{}, model.Bundle{}, ErrNotAdmin
	}

	unlock := s.sessions.Lock(actorID)
	defer unlock()

	session, ok := s.sessions.Get(actorID)
	if !ok || session.Stage != model.StageAwaitingPublish {
		return model.UploadSession{}, model.Bundle{}, ErrNothingToPublish
	}

	bundle, err := s.repo.GetByID(ctx, session.BundleID)
	if err != nil {
		return session, model.Bundle{}, fmt.Errorf("load committed bundle %d: %w", session.BundleID, err)
	}
	return session, bundle, nil
}

// MarkPublished closes the session once its bundle has been announced.
func (s *Service) MarkPublished(ctx context.Context, actorID int64, bundleID int64) error {
	if !s.IsAdmin(actorID) {
		return ErrNotAdmin
	}

	unlock := s.sessions.Lock(actorID)
	defer unlock()

	session, ok := s.sessions.Get(actorID)
	if !ok || session.Stage != model.StageAwaitingPublish || session.BundleID != bundleID {
		return ErrNothingToPublish
	}
	s.sessions.Delete(actorID)
	return nil
}

func (s *Service) Cancel(ctx context.Context, actorID int64) (bool, error) {
	if !s.IsAdmin(actorID) {
		return false, ErrNotAdmin
	}

	unlock := s.sessions.Lock(actorID)
	defer unlock()

	if _, ok := s.sessions.Get(actorID); !ok {
		return false, nil
	}
	s.sessions.Delete(actorID)
	return true, nil
}

func (s *Service) Current(actorID int64) (model.UploadSession, bool) {
	if !s.IsAdmin(actorID) {
		return model.UploadSession{}, false
	}
	return s.sessions.Get(actorID)
}
