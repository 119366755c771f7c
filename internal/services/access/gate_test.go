package access

import (
	"context"
	"errors"
	"testing"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
	"github.com/ivankudzin/tgdrop/internal/pkg/deeplink"
)

const (
	adminID  = int64(1)
	viewerID = int64(2)
)

type stubBundleRepo struct {
	bundles map[int64]model.Bundle
	err     error
}

func (s *stubBundleRepo) GetByID(_ context.Context, id int64) (model.Bundle, error) {
	if s.err != nil {
		return model.Bundle{}, s.err
	}
	bundle, ok := s.bundles[id]
	if !ok {
		return model.Bundle{}, model.ErrBundleNotFound
	}
	return bundle, nil
}

func newTestGate() *Gate {
	repo := &stubBundleRepo{bundles: map[int64]model.Bundle{
		7: {ID: 7, CoverRef: "cover", VideoRefs: []model.MediaRef{"a", "b"}},
	}}
	return NewGate(Config{AdminID: adminID, BotUsername: "drop_bot", AdURL: "https://ads.example.com/watch"}, repo, nil)
}

func TestDecideTable(t *testing.T) {
	testCases := []struct {
		name        string
		token       deeplink.Token
		requester   int64
		outcome     Outcome
		acknowledge bool
		expire      bool
	}{
		{name: "locked unknown", token: deeplink.LockedToken(99), requester: viewerID, outcome: OutcomeNotFound},
		{name: "unlocked unknown admin", token: deeplink.UnlockedToken(99), requester: adminID, outcome: OutcomeNotFound},
		{name: "locked admin", token: deeplink.LockedToken(7), requester: adminID, outcome: OutcomeDeliver},
		{name: "locked viewer", token: deeplink.LockedToken(7), requester: viewerID, outcome: OutcomeChallenge, expire: true},
		{name: "unlocked viewer", token: deeplink.UnlockedToken(7), requester: viewerID, outcome: OutcomeDeliver, acknowledge: true, expire: true},
		{name: "unlocked admin", token: deeplink.UnlockedToken(7), requester: adminID, outcome: OutcomeDeliver},
	}

	gate := newTestGate()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := gate.Decide(context.Background(), deeplink.Encode(tc.token), tc.requester)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if decision.Outcome != tc.outcome {
				t.Fatalf("expected outcome %s, got %s", tc.outcome, decision.Outcome)
			}
			if decision.Acknowledge != tc.acknowledge {
				t.Fatalf("expected acknowledge=%v, got %v", tc.acknowledge, decision.Acknowledge)
			}
			if tc.outcome != OutcomeNotFound && decision.Expire != tc.expire {
				t.Fatalf("expected expire=%v, got %v", tc.expire, decision.Expire)
			}
		})
	}
}

func TestDecideChallengeCarriesLinks(t *testing.T) {
	gate := newTestGate()

	decision, err := gate.Decide(context.Background(), deeplink.Encode(deeplink.LockedToken(7)), viewerID)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.AdURL != "https://ads.example.com/watch" {
		t.Fatalf("unexpected ad url %q", decision.AdURL)
	}
	want := deeplink.Link("drop_bot", deeplink.UnlockedToken(7))
	if decision.UnlockLink != want {
		t.Fatalf("expected unlock link %q, got %q", want, decision.UnlockLink)
	}
	if decision.Bundle.CoverRef != "cover" {
		t.Fatalf("challenge must carry the cover, got %+v", decision.Bundle)
	}
}

func TestDecideMalformedPayload(t *testing.T) {
	gate := newTestGate()
	for _, payload := range []string{"", "%%%", "Rk9PXzE", "VklEXzA"} {
		decision, err := gate.Decide(context.Background(), payload, viewerID)
		if err != nil {
			t.Fatalf("payload %q: unexpected error %v", payload, err)
		}
		if decision.Outcome != OutcomeMalformed {
			t.Fatalf("payload %q: expected malformed, got %s", payload, decision.Outcome)
		}
	}
}

func TestDecideUnlockIsIdempotent(t *testing.T) {
	gate := newTestGate()
	payload := deeplink.Encode(deeplink.UnlockedToken(7))

	first, err := gate.Decide(context.Background(), payload, viewerID)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := gate.Decide(context.Background(), payload, viewerID)
		if err != nil {
			t.Fatalf("decide #%d: %v", i+2, err)
		}
		if again.Outcome != first.Outcome || again.Bundle.ID != first.Bundle.ID || len(again.Bundle.VideoRefs) != len(first.Bundle.VideoRefs) {
			t.Fatalf("decision changed on repeat: %+v vs %+v", again, first)
		}
	}
}

func TestDecideRepoErrorPropagates(t *testing.T) {
	gate := NewGate(Config{AdminID: adminID}, &stubBundleRepo{err: errors.New("connection reset")}, nil)

	_, err := gate.Decide(context.Background(), deeplink.Encode(deeplink.LockedToken(7)), viewerID)
	if err == nil {
		t.Fatal("expected repo error")
	}
}
