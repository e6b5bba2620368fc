package core

import "testing"

func TestParseToken(t *testing.T) {
	tests := []struct {
		raw  string
		want Token
	}{
		{"Alice", Token{Sign: SignNone, Name: "Alice", Kind: KindUser}},
		{"+bob_2", Token{Sign: SignPlus, Name: "bob_2", Kind: KindUser}},
		{"-TEAM", Token{Sign: SignMinus, Name: "TEAM", Kind: KindGroup}},
		{"TEAM", Token{Sign: SignNone, Name: "TEAM", Kind: KindGroup}},
		{"TEAM1", Token{Sign: SignNone, Name: "TEAM1", Kind: KindUser}},
		{"A", Token{Sign: SignNone, Name: "A", Kind: KindGroup}},
		{"al-ice", Token{Sign: SignNone, Name: "al-ice", Kind: KindUnknown}},
		{"--x", Token{Sign: SignMinus, Name: "-x", Kind: KindUnknown}},
		{"", Token{Kind: KindUnknown}},
		{"-", Token{Sign: SignMinus, Kind: KindUnknown}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseToken(tt.raw); got != tt.want {
				t.Errorf("ParseToken(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIsGroupName(t *testing.T) {
	for name, want := range map[string]bool{
		"FRIENDS": true,
		"Friends": false,
		"FRIENDS2": false,
		"":        false,
	} {
		if got := IsGroupName(name); got != want {
			t.Errorf("IsGroupName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsUserName(t *testing.T) {
	for name, want := range map[string]bool{
		"Alice":   true,
		"bob_2":   true,
		"BOB":     true,
		"+Alice":  false,
		"al ice":  false,
		"":        false,
	} {
		if got := IsUserName(name); got != want {
			t.Errorf("IsUserName(%q) = %v, want %v", name, got, want)
		}
	}
}
