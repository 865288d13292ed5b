package session

import (
	"errors"
	"testing"
)

func loaded(t *testing.T) *Session {
	t.Helper()
	s := New()
	s.Apply(DocumentLoaded{})
	if s.State() != Ready {
		t.Fatalf("state = %v after load", s.State())
	}
	return s
}

func drawRegion(s *Session, page int, x, y, w, h, scale float64) {
	s.Apply(BeginDraw{Page: page, X: x, Y: y, Scale: scale})
	s.Apply(UpdateDraw{X: x + w, Y: y + h})
	s.Apply(EndDraw{})
}

func TestHappyPath(t *testing.T) {
	s := loaded(t)
	drawRegion(s, 1, 100, 200, 80, 20, 1.5)
	if s.State() != Ready {
		t.Fatalf("state = %v after draw", s.State())
	}
	regions := s.Regions()
	if len(regions) != 1 {
		t.Fatalf("regions = %+v", regions)
	}
	want := SelectedRegion{Page: 1, X: 100, Y: 200, W: 80, H: 20, Scale: 1.5}
	if regions[0] != want {
		t.Errorf("region = %+v, want %+v", regions[0], want)
	}

	actions := s.Apply(Commit{})
	if s.State() != Committing {
		t.Fatalf("state = %v after commit", s.State())
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %+v", actions)
	}
	pc, ok := actions[0].(PerformCommit)
	if !ok || len(pc.Regions) != 1 || pc.Regions[0] != want {
		t.Errorf("action = %+v", actions[0])
	}

	s.Apply(CommitOK{})
	if s.State() != Closed {
		t.Errorf("state = %v, want closed", s.State())
	}
}

func TestLoadFailureCloses(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	actions := s.Apply(LoadFailed{Err: boom})
	if s.State() != Closed {
		t.Errorf("state = %v", s.State())
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %+v", actions)
	}
	if re, ok := actions[0].(ReportError); !ok || !errors.Is(re.Err, boom) {
		t.Errorf("action = %+v", actions[0])
	}
}

func TestDegenerateDragDiscarded(t *testing.T) {
	s := loaded(t)
	// 5 px wide, 30 px tall: below the minimum in one dimension.
	drawRegion(s, 1, 100, 100, 5, 30, 1.0)
	if s.State() != Ready {
		t.Errorf("state = %v", s.State())
	}
	if got := s.Regions(); len(got) != 0 {
		t.Errorf("degenerate drag kept: %+v", got)
	}
}

func TestDragNormalizesReversedCorners(t *testing.T) {
	s := loaded(t)
	s.Apply(BeginDraw{Page: 2, X: 180, Y: 220, Scale: 2})
	s.Apply(UpdateDraw{X: 100, Y: 200})
	s.Apply(EndDraw{})
	got := s.Regions()
	if len(got) != 1 {
		t.Fatalf("regions = %+v", got)
	}
	want := SelectedRegion{Page: 2, X: 100, Y: 200, W: 80, H: 20, Scale: 2}
	if got[0] != want {
		t.Errorf("region = %+v, want %+v", got[0], want)
	}
}

func TestRegionsRememberTheirOwnScale(t *testing.T) {
	s := loaded(t)
	drawRegion(s, 1, 0, 0, 30, 30, 1.0)
	drawRegion(s, 1, 50, 50, 30, 30, 2.5)
	got := s.Regions()
	if len(got) != 2 || got[0].Scale != 1.0 || got[1].Scale != 2.5 {
		t.Errorf("regions = %+v", got)
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := loaded(t)
	drawRegion(s, 1, 0, 0, 30, 30, 1)
	drawRegion(s, 2, 0, 0, 30, 30, 1)
	drawRegion(s, 2, 50, 0, 30, 30, 1)

	s.Apply(RemoveRegion{Index: 0})
	if got := s.Regions(); len(got) != 2 || got[0].Page != 2 {
		t.Fatalf("after remove: %+v", got)
	}
	s.Apply(RemoveRegion{Index: 99}) // ignored
	s.Apply(ClearPage{Page: 2})
	if got := s.Regions(); len(got) != 0 {
		t.Errorf("after clear: %+v", got)
	}
}

func TestCommitRequiresRegions(t *testing.T) {
	s := loaded(t)
	actions := s.Apply(Commit{})
	if s.State() != Ready || len(actions) != 0 {
		t.Errorf("state = %v, actions = %+v", s.State(), actions)
	}
}

func TestCommitFailureIsRetryable(t *testing.T) {
	s := loaded(t)
	drawRegion(s, 1, 0, 0, 30, 30, 1)
	s.Apply(Commit{})
	actions := s.Apply(CommitFailed{Err: errors.New("store down")})
	if s.State() != Ready {
		t.Fatalf("state = %v", s.State())
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %+v", actions)
	}
	if got := s.Regions(); len(got) != 1 {
		t.Errorf("regions lost on failure: %+v", got)
	}

	// Retry succeeds.
	if actions := s.Apply(Commit{}); len(actions) != 1 {
		t.Fatalf("retry actions = %+v", actions)
	}
	s.Apply(CommitOK{})
	if s.State() != Closed {
		t.Errorf("state = %v", s.State())
	}
}

func TestCommitReentrancyGuard(t *testing.T) {
	s := loaded(t)
	drawRegion(s, 1, 0, 0, 30, 30, 1)
	first := s.Apply(Commit{})
	second := s.Apply(Commit{})
	if len(first) != 1 || len(second) != 0 {
		t.Errorf("first = %+v, second = %+v", first, second)
	}
	if s.State() != Committing {
		t.Errorf("state = %v", s.State())
	}
}

func TestCancelFromReadyAndDrawing(t *testing.T) {
	s := loaded(t)
	s.Apply(Cancel{})
	if s.State() != Cancelled {
		t.Errorf("from ready: %v", s.State())
	}

	s = loaded(t)
	s.Apply(BeginDraw{Page: 1, X: 0, Y: 0, Scale: 1})
	s.Apply(Cancel{})
	if s.State() != Cancelled {
		t.Errorf("from drawing: %v", s.State())
	}
}

func TestEventsIgnoredInTerminalStates(t *testing.T) {
	s := loaded(t)
	s.Apply(Cancel{})
	if actions := s.Apply(Commit{}); len(actions) != 0 || s.State() != Cancelled {
		t.Errorf("cancelled session reacted: %v %+v", s.State(), actions)
	}
}

func TestMultipleIndependentSessions(t *testing.T) {
	a := loaded(t)
	b := loaded(t)
	drawRegion(a, 1, 0, 0, 30, 30, 1)
	if len(b.Regions()) != 0 {
		t.Error("sessions share state")
	}
}
