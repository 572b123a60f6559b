package keys

import "testing"

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"owner", RoleOwner},
		{"active", RoleActive},
		{"posting", RolePosting},
		{"memo", RoleMemo},
		{"Posting", RolePosting},
		{"ACTIVE", RoleActive},
		{"  memo ", RoleMemo},
	}

	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if err != nil {
			t.Errorf("ParseRole(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseRole_Unrecognized(t *testing.T) {
	for _, in := range []string{"", "master", "signing", "owner2"} {
		if _, err := ParseRole(in); err == nil {
			t.Errorf("ParseRole(%q) should fail", in)
		}
	}
}

func TestRole_TextRoundTrip(t *testing.T) {
	for _, role := range AllRoles() {
		text, err := role.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error: %v", role, err)
		}
		var back Role
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error: %v", text, err)
		}
		if back != role {
			t.Errorf("round trip: got %v, want %v", back, role)
		}
	}
}

func TestKeySet_Merge(t *testing.T) {
	ks := KeySet{
		Posting: Owned("wif-posting-1", "pub-posting-1"),
		Memo:    Owned("wif-memo", "pub-memo"),
	}

	ks.Merge(KeySet{
		Posting: Owned("wif-posting-2", "pub-posting-2"),
		Active:  Delegated("parent"),
	})

	if ks.Posting.PrivateKey != "wif-posting-2" {
		t.Errorf("posting slot = %q, want last write", ks.Posting.PrivateKey)
	}
	if ks.Memo == nil || ks.Memo.PrivateKey != "wif-memo" {
		t.Error("memo slot should be untouched by merge")
	}
	if !ks.Active.IsDelegated() {
		t.Error("active slot should be a delegated reference")
	}
	if ks.Active.DelegatedFrom != "parent" {
		t.Errorf("delegated from = %q, want %q", ks.Active.DelegatedFrom, "parent")
	}
}

func TestKeySet_SlotAndRoles(t *testing.T) {
	ks := KeySet{}
	if !ks.IsEmpty() {
		t.Error("zero KeySet should be empty")
	}

	ks.SetSlot(RoleActive, Owned("w", "p"))
	if ks.Slot(RoleActive) == nil {
		t.Fatal("Slot(RoleActive) = nil after SetSlot")
	}
	if ks.IsEmpty() {
		t.Error("KeySet with a slot should not be empty")
	}

	roles := ks.Roles()
	if len(roles) != 1 || roles[0] != RoleActive {
		t.Errorf("Roles() = %v, want [active]", roles)
	}
}
