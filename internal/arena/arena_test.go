package arena

import "testing"

func TestNewReturnsSequentialHandles(t *testing.T) {
	var a Arena[*int]
	x, y, z := 1, 2, 3

	h0 := a.New(&x)
	h1 := a.New(&y)
	h2 := a.New(&z)

	if h0 != 0 || h1 != 1 || h2 != 2 {
		t.Fatalf("handles = %d, %d, %d, want 0, 1, 2", h0, h1, h2)
	}
}

func TestGetReturnsTheSameSharedValue(t *testing.T) {
	var a Arena[*int]
	v := 42
	h := a.New(&v)

	got := a.Get(h)
	*got += 1

	if *a.Get(h) != 43 {
		t.Errorf("mutation through Get() result not visible on next Get(): got %d, want 43", *a.Get(h))
	}
}

func TestGetPanicsOnOutOfRangeHandle(t *testing.T) {
	var a Arena[*int]
	defer func() {
		if recover() == nil {
			t.Error("Get() on an out-of-range handle did not panic")
		}
	}()
	a.Get(Handle(0))
}

func TestLenCountsAllocations(t *testing.T) {
	var a Arena[*int]
	if a.Len() != 0 {
		t.Errorf("Len() on an empty arena = %d, want 0", a.Len())
	}
	v := 1
	a.New(&v)
	a.New(&v)
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
}

func TestAllReturnsHandlesInAllocationOrder(t *testing.T) {
	var a Arena[*int]
	v := 1
	a.New(&v)
	a.New(&v)
	a.New(&v)

	got := a.All()
	want := []Handle{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("All() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFindReturnsFirstMatch(t *testing.T) {
	var a Arena[*int]
	x, y, z := 1, 2, 2
	a.New(&x)
	hy := a.New(&y)
	a.New(&z)

	h, ok := a.Find(func(p *int) bool { return *p == 2 })
	if !ok {
		t.Fatal("Find() reported no match")
	}
	if h != hy {
		t.Errorf("Find() = %d, want %d (first matching handle)", h, hy)
	}
}

func TestFindReportsNoMatch(t *testing.T) {
	var a Arena[*int]
	v := 1
	a.New(&v)

	_, ok := a.Find(func(p *int) bool { return *p == 999 })
	if ok {
		t.Error("Find() reported a match that should not exist")
	}
}
