package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/rs/zerolog"
)

type fakeAPI struct {
	mu        sync.Mutex
	calls     int
	tokCalls  int
	statsErr  error
	tokErr    error
	commitErr error
}

func (f *fakeAPI) CommitStats(context.Context, string, string) (domain.CommitStats, error) {
	if f.commitErr != nil {
		return domain.CommitStats{}, f.commitErr
	}
	return domain.CommitStats{Total: 10, Additions: 7, Deletions: 3}, nil
}

func (f *fakeAPI) Token(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokCalls++
	return "tok", f.tokErr
}

func (f *fakeAPI) MilestoneStats(_ context.Context, token string, _, _ int64) (domain.MilestoneStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if token != "tok" {
		return domain.MilestoneStats{}, errors.New("bad token")
	}
	return domain.MilestoneStats{TotalPoints: 13, ClosedPoints: 5}, f.statsErr
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestCommitsZeroFillOnFailure(t *testing.T) {
	c := NewCommits(&fakeAPI{commitErr: errors.New("dial tcp: connection refused")}, time.Second, zerolog.Nop())
	if st := c.CommitStats(context.Background(), "team-a", "o/r", "abc"); st != (domain.CommitStats{}) {
		t.Fatalf("expected zero stats, got %+v", st)
	}
	ok := NewCommits(&fakeAPI{}, time.Second, zerolog.Nop())
	if st := ok.CommitStats(context.Background(), "team-a", "o/r", "abc"); st.Total != 10 {
		t.Fatalf("expected stats passthrough, got %+v", st)
	}
}

func TestCommitsResolvesClientPerTeam(t *testing.T) {
	def := &fakeAPI{commitErr: errors.New("401 Bad credentials")}
	course := &fakeAPI{}
	var asked []string
	c := NewCommits(def, time.Second, zerolog.Nop()).WithClients(func(prj string) (CommitAPI, error) {
		asked = append(asked, prj)
		switch prj {
		case "team-a":
			return course, nil
		case "broken":
			return nil, errors.New("no client")
		}
		return nil, nil
	})
	if st := c.CommitStats(context.Background(), "team-a", "o/r", "abc"); st.Total != 10 {
		t.Fatalf("team-a should use its course client, got %+v", st)
	}
	if st := c.CommitStats(context.Background(), "team-z", "o/r", "abc"); st != (domain.CommitStats{}) {
		t.Fatalf("team-z falls back to the default client, got %+v", st)
	}
	if st := c.CommitStats(context.Background(), "broken", "o/r", "abc"); st != (domain.CommitStats{}) {
		t.Fatalf("resolver error should zero-fill, got %+v", st)
	}
	if len(asked) != 3 || asked[0] != "team-a" {
		t.Fatalf("resolver calls = %v", asked)
	}
}

func TestMilestonesCacheExpiresByClock(t *testing.T) {
	api := &fakeAPI{}
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	m := NewMilestones(api, NewTokens(api, 23*time.Hour, clk.now), 5*time.Second, clk.now, zerolog.Nop())
	cr := Credentials{Username: "u", Password: "p"}

	for i := 0; i < 3; i++ {
		st, err := m.Stats(context.Background(), cr, 1, 2)
		if err != nil || st == nil || st.TotalPoints != 13 {
			t.Fatalf("unexpected stats %+v err=%v", st, err)
		}
	}
	if api.calls != 1 {
		t.Fatalf("expected 1 upstream call within ttl, got %d", api.calls)
	}
	if _, err := m.Stats(context.Background(), cr, 1, 3); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if api.calls != 2 {
		t.Fatalf("different milestone must miss the cache, calls=%d", api.calls)
	}
	clk.t = clk.t.Add(5 * time.Second)
	if _, err := m.Stats(context.Background(), cr, 1, 2); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if api.calls != 3 {
		t.Fatalf("expected refetch after expiry, calls=%d", api.calls)
	}
	if api.tokCalls != 1 {
		t.Fatalf("token should be cached, calls=%d", api.tokCalls)
	}
}

func TestMilestonesFailSoftButTokenFailsHard(t *testing.T) {
	api := &fakeAPI{statsErr: errors.New("502")}
	m := NewMilestones(api, NewTokens(api, time.Hour, nil), time.Second, nil, zerolog.Nop())
	st, err := m.Stats(context.Background(), Credentials{"u", "p"}, 1, 2)
	if err != nil || st != nil {
		t.Fatalf("expected neutral nil stats, got %+v err=%v", st, err)
	}

	bad := &fakeAPI{tokErr: errors.New("401")}
	m = NewMilestones(bad, NewTokens(bad, time.Hour, nil), time.Second, nil, zerolog.Nop())
	if _, err := m.Stats(context.Background(), Credentials{"u", "p"}, 1, 2); !errors.Is(err, domain.ErrTokenAcquisition) {
		t.Fatalf("expected ErrTokenAcquisition, got %v", err)
	}
}

func TestTokensRefreshBeforeExpiry(t *testing.T) {
	api := &fakeAPI{}
	clk := &clock{t: time.Unix(0, 0)}
	tk := NewTokens(api, 23*time.Hour, clk.now)
	cr := Credentials{"u", "p"}
	if _, err := tk.Token(context.Background(), cr); err != nil {
		t.Fatalf("token: %v", err)
	}
	clk.t = clk.t.Add(23*time.Hour - 30*time.Second)
	if _, err := tk.Token(context.Background(), cr); err != nil {
		t.Fatalf("token: %v", err)
	}
	if api.tokCalls != 2 {
		t.Fatalf("token within the refresh margin should be renewed, calls=%d", api.tokCalls)
	}
}
