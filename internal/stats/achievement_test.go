package stats

import (
	"reflect"
	"testing"
)

func findAchievement(t *testing.T, list []Achievement, id string) Achievement {
	t.Helper()
	for _, a := range list {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("achievement %q not found", id)
	return Achievement{}
}

func TestEvaluateAchievements_FirstEntry(t *testing.T) {
	tests := []struct {
		name         string
		totalEntries int
		wantUnlocked bool
		wantProgress int
	}{
		{"エントリなし", 0, false, 0},
		// 進捗は目標値で頭打ちになる
		{"5件", 5, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findAchievement(t, EvaluateAchievements(AchievementInput{TotalEntries: tt.totalEntries}), "first_entry")
			if got.Unlocked != tt.wantUnlocked {
				t.Errorf("Unlocked = %v, want %v", got.Unlocked, tt.wantUnlocked)
			}
			if got.Progress != tt.wantProgress {
				t.Errorf("Progress = %d, want %d", got.Progress, tt.wantProgress)
			}
		})
	}
}

func TestEvaluateAchievements_PreservesTableOrder(t *testing.T) {
	got := EvaluateAchievements(AchievementInput{})

	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.ID
	}
	want := []string{"first_entry", "week_warrior", "reflection_rookie", "month_master", "wordsmith", "century_club"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestEvaluateAchievements_MetricsAndThresholds(t *testing.T) {
	got := EvaluateAchievements(AchievementInput{TotalEntries: 10, CurrentStreak: 7, TotalWords: 9999})

	tests := []struct {
		id           string
		wantUnlocked bool
		wantProgress int
	}{
		{"week_warrior", true, 7},
		{"month_master", false, 7},
		{"reflection_rookie", true, 10},
		{"wordsmith", false, 9999},
	}
	for _, tt := range tests {
		a := findAchievement(t, got, tt.id)
		if a.Unlocked != tt.wantUnlocked || a.Progress != tt.wantProgress {
			t.Errorf("%s: unlocked=%v progress=%d, want unlocked=%v progress=%d",
				tt.id, a.Unlocked, a.Progress, tt.wantUnlocked, tt.wantProgress)
		}
	}
	if n := UnlockedCount(got); n != 3 {
		t.Errorf("UnlockedCount() = %d, want 3", n)
	}
}

func TestEvaluateAchievements_MonotoneAndClamped(t *testing.T) {
	prev := EvaluateAchievements(AchievementInput{})
	for n := 1; n <= 150; n++ {
		cur := EvaluateAchievements(AchievementInput{TotalEntries: n, CurrentStreak: n, TotalWords: n * 100})
		if len(cur) != len(prev) {
			t.Fatalf("n=%d: len = %d, want %d", n, len(cur), len(prev))
		}
		for i := range cur {
			if cur[i].Progress < prev[i].Progress {
				t.Errorf("n=%d %s: progress decreased %d -> %d", n, cur[i].ID, prev[i].Progress, cur[i].Progress)
			}
			if cur[i].Progress > cur[i].Target {
				t.Errorf("n=%d %s: progress %d exceeds target %d", n, cur[i].ID, cur[i].Progress, cur[i].Target)
			}
			if cur[i].Unlocked != (cur[i].Progress >= cur[i].Target) {
				t.Errorf("n=%d %s: unlocked = %v with progress %d/%d", n, cur[i].ID, cur[i].Unlocked, cur[i].Progress, cur[i].Target)
			}
		}
		prev = cur
	}
	if n := UnlockedCount(prev); n != len(Achievements) {
		t.Errorf("UnlockedCount() = %d, want %d", n, len(Achievements))
	}
}

func TestEvaluateAchievements_NegativeInputsAndDeterminism(t *testing.T) {
	got := EvaluateAchievements(AchievementInput{TotalEntries: -3, CurrentStreak: -1, TotalWords: -10})
	for _, a := range got {
		if a.Progress != 0 || a.Unlocked {
			t.Errorf("%s: progress=%d unlocked=%v, want 0/false", a.ID, a.Progress, a.Unlocked)
		}
	}

	in := AchievementInput{TotalEntries: 42, CurrentStreak: 9, TotalWords: 12345}
	if !reflect.DeepEqual(EvaluateAchievements(in), EvaluateAchievements(in)) {
		t.Error("EvaluateAchievements should be deterministic")
	}
}
