package uploads

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

const adminID = int64(5001)

type fakeBundleRepo struct {
	mu      sync.Mutex
	nextID  int64
	bundles map[int64]model.Bundle
	err     error
	calls   int
}

func newFakeBundleRepo() *fakeBundleRepo {
	return &fakeBundleRepo{nextID: 1, bundles: make(map[int64]model.Bundle)}
}

func (r *fakeBundleRepo) Create(_ context.Context, bundle model.NewBundle) (model.Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return model.Bundle{}, r.err
	}
	created := model.Bundle{
		ID:        r.nextID,
		CoverRef:  bundle.CoverRef,
		VideoRefs: append([]model.MediaRef(nil), bundle.VideoRefs...),
	}
	r.bundles[created.ID] = created
	r.nextID++
	return created, nil
}

func (r *fakeBundleRepo) GetByID(_ context.Context, id int64) (model.Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bundle, ok := r.bundles[id]
	if !ok {
		return model.Bundle{}, model.ErrBundleNotFound
	}
	return bundle, nil
}

func TestParseVideoCountBounds(t *testing.T) {
	testCases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: 1},
		{raw: "1", want: 1},
		{raw: " 10 ", want: 10},
		{raw: "0", wantErr: true},
		{raw: "11", wantErr: true},
		{raw: "-2", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "2x", wantErr: true},
		{raw: "+5", wantErr: true},
		{raw: "05", wantErr: true},
		{raw: "00", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := ParseVideoCount(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidVideoCount) {
				t.Fatalf("count %q: expected ErrInvalidVideoCount, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("count %q: unexpected error %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("count %q: expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestStartRejectsInvalidCountWithoutStateChange(t *testing.T) {
	svc := NewService(adminID, newFakeBundleRepo(), nil, nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, adminID, "3"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.Start(ctx, adminID, "11"); !errors.Is(err, ErrInvalidVideoCount) {
		t.Fatalf("expected ErrInvalidVideoCount, got %v", err)
	}

	session, ok := svc.Current(adminID)
	if !ok {
		t.Fatal("expected previous session to survive rejected start")
	}
	if session.RequiredVideos != 3 {
		t.Fatalf("expected required videos 3, got %d", session.RequiredVideos)
	}
}

func TestStartDiscardsPreviousSession(t *testing.T) {
	svc := NewService(adminID, newFakeBundleRepo(), nil, nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, adminID, "2"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SubmitCover(ctx, adminID, "cover-1", 10); err != nil {
		t.Fatalf("submit cover: %v", err)
	}

	session, err := svc.Start(ctx, adminID, "")
	if err != nil {
		t.Fatalf("restart session: %v", err)
	}
	if session.Stage != model.StageAwaitingCover || session.RequiredVideos != 1 || session.CoverRef != "" {
		t.Fatalf("expected fresh session, got %+v", session)
	}
}

func TestNonAdminCannotMutateSessions(t *testing.T) {
	svc := NewService(adminID, newFakeBundleRepo(), nil, nil)
	ctx := context.Background()
	stranger := int64(777)

	if _, err := svc.Start(ctx, adminID, "1"); err != nil {
		t.Fatalf("start session: %v", err)
	}

	if _, err := svc.Start(ctx, stranger, "1"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("start: expected ErrNotAdmin, got %v", err)
	}
	if _, err := svc.SubmitCover(ctx, stranger, "cover", 1); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("cover: expected ErrNotAdmin, got %v", err)
	}
	if _, err := svc.SubmitVideo(ctx, stranger, "video", 2); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("video: expected ErrNotAdmin, got %v", err)
	}
	if _, err := svc.Cancel(ctx, stranger); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("cancel: expected ErrNotAdmin, got %v", err)
	}

	session, ok := svc.Current(adminID)
	if !ok || session.Stage != model.StageAwaitingCover || session.CoverRef != "" {
		t.Fatalf("admin session changed by stranger: %+v", session)
	}
	if _, ok := svc.Current(stranger); ok {
		t.Fatal("stranger must not see a session")
	}
}

func TestVideoBeforeCoverIsNoop(t *testing.T) {
	repo := newFakeBundleRepo()
	svc := NewService(adminID, repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.SubmitVideo(ctx, adminID, "video-a", 1); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession without session, got %v", err)
	}

	if _, err := svc.Start(ctx, adminID, "1"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SubmitVideo(ctx, adminID, "video-a", 1); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected ErrWrongStage, got %v", err)
	}

	session, _ := svc.Current(adminID)
	if len(session.VideoRefs) != 0 || session.Stage != model.StageAwaitingCover {
		t.Fatalf("session changed by early video: %+v", session)
	}
	if repo.calls != 0 {
		t.Fatalf("expected no commit, got %d", repo.calls)
	}
}

func TestCoverRequiresAwaitingCoverStage(t *testing.T) {
	svc := NewService(adminID, newFakeBundleRepo(), nil, nil)
	ctx := context.Background()

	if _, err := svc.SubmitCover(ctx, adminID, "cover", 1); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := svc.Start(ctx, adminID, "2"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SubmitCover(ctx, adminID, "cover", 1); err != nil {
		t.Fatalf("submit cover: %v", err)
	}
	if _, err := svc.SubmitCover(ctx, adminID, "cover-2", 2); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected ErrWrongStage for second cover, got %v", err)
	}

	session, _ := svc.Current(adminID)
	if session.CoverRef != "cover" || session.OriginMessageID != 1 {
		t.Fatalf("second cover overwrote session: %+v", session)
	}
}

func TestTwoVideoSessionCommitsBundle(t *testing.T) {
	repo := newFakeBundleRepo()
	svc := NewService(adminID, repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, adminID, "2"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SubmitCover(ctx, adminID, "cover", 100); err != nil {
		t.Fatalf("submit cover: %v", err)
	}

	first, err := svc.SubmitVideo(ctx, adminID, "video-a", 101)
	if err != nil {
		t.Fatalf("submit first video: %v", err)
	}
	if first.Current != 1 || first.Required != 2 || first.Committed {
		t.Fatalf("unexpected first progress: %+v", first)
	}
	if repo.calls != 0 {
		t.Fatalf("commit must wait for the last video")
	}

	second, err := svc.SubmitVideo(ctx, adminID, "video-b", 102)
	if err != nil {
		t.Fatalf("submit second video: %v", err)
	}
	if !second.Committed || second.Current != 2 || second.Required != 2 {
		t.Fatalf("unexpected second progress: %+v", second)
	}

	stored, err := repo.GetByID(ctx, second.Bundle.ID)
	if err != nil {
		t.Fatalf("bundle not stored: %v", err)
	}
	if stored.CoverRef != "cover" || len(stored.VideoRefs) != 2 || stored.VideoRefs[0] != "video-a" || stored.VideoRefs[1] != "video-b" {
		t.Fatalf("unexpected stored bundle: %+v", stored)
	}

	working := second.Session.WorkingMessageIDs()
	if len(working) != 3 || working[0] != 100 || working[1] != 101 || working[2] != 102 {
		t.Fatalf("unexpected working messages: %v", working)
	}

	if _, err := svc.SubmitVideo(ctx, adminID, "video-c", 103); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected extra video to be rejected, got %v", err)
	}

	if err := svc.MarkPublished(ctx, adminID, second.Bundle.ID); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if _, ok := svc.Current(adminID); ok {
		t.Fatal("expected session to be removed after publication")
	}
}

func TestCommitFailureKeepsSessionForRetry(t *testing.T) {
	repo := newFakeBundleRepo()
	repo.err = errors.New("disk full")
	svc := NewService(adminID, repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, adminID, "1"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SubmitCover(ctx, adminID, "cover", 1); err != nil {
		t.Fatalf("submit cover: %v", err)
	}

	progress, err := svc.SubmitVideo(ctx, adminID, "video-a", 2)
	if err == nil {
		t.Fatal("expected commit error")
	}
	if progress.Committed {
		t.Fatal("failed commit must not report a bundle")
	}

	session, ok := svc.Current(adminID)
	if !ok || session.Stage != model.StageAwaitingVideos || len(session.VideoRefs) != 0 {
		t.Fatalf("session not preserved after failed commit: %+v", session)
	}

	repo.err = nil
	retry, err := svc.SubmitVideo(ctx, adminID, "video-a", 3)
	if err != nil {
		t.Fatalf("retry commit: %v", err)
	}
	if !retry.Committed || retry.Bundle.ID != 1 {
		t.Fatalf("unexpected retry progress: %+v", retry)
	}
}

func TestPendingPublicationReturnsStoredBundle(t *testing.T) {
	repo := newFakeBundleRepo()
	svc := NewService(adminID, repo, nil, nil)
	ctx := context.Background()

	if _, _, err := svc.PendingPublication(ctx, adminID); !errors.Is(err, ErrNothingToPublish) {
		t.Fatalf("expected ErrNothingToPublish, got %v", err)
	}

	if _, err := svc.Start(ctx, adminID, "1"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SubmitCover(ctx, adminID, "cover", 1); err != nil {
		t.Fatalf("submit cover: %v", err)
	}
	progress, err := svc.SubmitVideo(ctx, adminID, "video-a", 2)
	if err != nil {
		t.Fatalf("submit video: %v", err)
	}

	_, bundle, err := svc.PendingPublication(ctx, adminID)
	if err != nil {
		t.Fatalf("pending publication: %v", err)
	}
	if bundle.ID != progress.Bundle.ID {
		t.Fatalf("expected bundle %d, got %d", progress.Bundle.ID, bundle.ID)
	}
	if repo.calls != 1 {
		t.Fatalf("retrying publication must not re-commit, got %d creates", repo.calls)
	}
}

func TestConcurrentVideosCommitOnce(t *testing.T) {
	repo := newFakeBundleRepo()
	svc := NewService(adminID, repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, adminID, "10"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SubmitCover(ctx, adminID, "cover", 1); err != nil {
		t.Fatalf("submit cover: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.SubmitVideo(ctx, adminID, model.MediaRef("video"), 10+i)
		}(i)
	}
	wg.Wait()

	if repo.calls != 1 {
		t.Fatalf("expected exactly one commit, got %d", repo.calls)
	}
	bundle, err := repo.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	if len(bundle.VideoRefs) != 10 {
		t.Fatalf("expected 10 videos, got %d", len(bundle.VideoRefs))
	}
}
