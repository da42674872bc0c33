package utils

import "testing"

func Test_NewPage_Clamps(t *testing.T) {
	cases := []struct {
		limit, offset  int
		wantL, wantOff int
	}{
		{0, 0, DefaultLimit, 0},
		{500, -3, MaxLimit, 0},
		{10, 30, 10, 30},
	}
	for _, tc := range cases {
		p := NewPage(tc.limit, tc.offset)
		if p.Limit != tc.wantL || p.Offset != tc.wantOff {
			t.Fatalf("NewPage(%d,%d) = %+v", tc.limit, tc.offset, p)
		}
	}
}

func Test_Result_HasMore(t *testing.T) {
	p := NewPage(2, 0)
	r := Result([]int{1, 2}, 5, p)
	if !r.HasMore {
		t.Fatal("expected more rows")
	}
	r = Result([]int{5}, 5, NewPage(2, 4))
	if r.HasMore {
		t.Fatal("last page must not report more")
	}
	var none []string
	if got := Result(none, 0, p); got.Items == nil {
		t.Fatal("items must be an empty slice")
	}
}
