package store

import (
	"reflect"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestAccount_OnReview(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		want    bool
	}{
		{"empty", Account{UserID: "u1"}, false},
		{"with candidates", Account{UserID: "u1", PossibleDuplicateWith: []string{"u2"}}, true},
		{"counter and ip", Account{UserID: "u1", IP: "10.0.0.1", DuplicateReviewCount: intPtr(1)}, true},
		{"counter without ip", Account{UserID: "u1", DuplicateReviewCount: intPtr(1)}, false},
		{"ip without counter", Account{UserID: "u1", IP: "10.0.0.1"}, false},
		{"zero counter still counts", Account{UserID: "u1", IP: "10.0.0.1", DuplicateReviewCount: intPtr(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.account.OnReview(); got != tt.want {
				t.Errorf("OnReview() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccount_Clone_Independence(t *testing.T) {
	orig := &Account{
		UserID:                "u1",
		IP:                    "10.0.0.1",
		DuplicateReviewCount:  intPtr(2),
		PossibleDuplicateWith: []string{"u2", "u3"},
	}

	clone := orig.Clone()

	*clone.DuplicateReviewCount = 9
	clone.PossibleDuplicateWith[0] = "changed"

	if *orig.DuplicateReviewCount != 2 {
		t.Error("clone shares the review counter with the original")
	}
	if orig.PossibleDuplicateWith[0] != "u2" {
		t.Error("clone shares the candidate slice with the original")
	}
}

func TestAccount_Clone_Nil(t *testing.T) {
	var a *Account
	if a.Clone() != nil {
		t.Error("expected nil clone of nil account")
	}
}

func TestUnionIDs(t *testing.T) {
	got := unionIDs([]string{"u2"}, []string{"u2", "u3", "", "u1", "u3"}, "u1")
	want := []string{"u2", "u3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unionIDs() = %v, want %v", got, want)
	}
}
