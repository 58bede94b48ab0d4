package infection

import (
	"github.com/google/go-cmp/cmp"
	"testing"
)

func TestFrontierPopN(t *testing.T) {
	f := newFrontier(1, 2, 3)
	f.push(4, 5)

	if got := f.popN(2); !cmp.Equal(got, []int64{1, 2}) {
		t.Errorf("popN(2) = %v, want [1 2]", got)
	}
	if got := f.popN(10); !cmp.Equal(got, []int64{3, 4, 5}) {
		t.Errorf("popN(10) = %v, want [3 4 5]", got)
	}
	if !f.empty() {
		t.Errorf("expected frontier to be empty, has %d entries", f.len())
	}
	if got := f.popN(3); len(got) != 0 {
		t.Errorf("popN on empty frontier returned %v", got)
	}
}

func TestFrontierReclaimsConsumedSpace(t *testing.T) {
	f := newFrontier()
	var want []int64
	for i := int64(0); i < 1000; i++ {
		f.push(i)
		if i%2 == 1 {
			want = append(want, f.popN(2)...)
		}
	}
	want = append(want, f.popN(f.len())...)

	if len(want) != 1000 {
		t.Fatalf("popped %d ids, want 1000", len(want))
	}
	for i, id := range want {
		if id != int64(i) {
			t.Fatalf("ids popped out of order at %d: got %d", i, id)
		}
	}
	if cap(f.ids) > 8 {
		t.Errorf("frontier grew to capacity %d", cap(f.ids))
	}
}

func TestFrontierPopReturnsCopy(t *testing.T) {
	f := newFrontier(1, 2, 3, 4)
	batch := f.popN(2)
	f.push(9, 9, 9, 9)

	if !cmp.Equal(batch, []int64{1, 2}) {
		t.Errorf("popped batch was overwritten: %v", batch)
	}
}
