package network

import "testing"

func TestUid(t *testing.T) {
	id := NewUid()
	if !ValidUid(id) {
		t.Errorf("%v is not a valid uid", id)
	}
	if ValidUid("garbage") {
		t.Errorf("garbage is a valid uid")
	}
	if s := id.Short(); len(s) != 7 {
		t.Errorf("short uid %v has wrong length", s)
	}
	if s := Uid("abc").Short(); s != "abc" {
		t.Errorf("short uid %v != abc", s)
	}
	if NewUid() == id {
		t.Errorf("uids are not unique")
	}
}
