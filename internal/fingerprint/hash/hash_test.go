package hash

import (
	goHash "hash"
	"strings"
	"testing"
)

// fakeHash ignores everything written to it and always sums to "fake",
// used to prove Register() actually swaps the algorithm Sum/SumReader use.
type fakeHash struct{}

func newFakeHash() goHash.Hash { return fakeHash{} }

func (fakeHash) Write(p []byte) (int, error) { return len(p), nil }
func (fakeHash) Sum(b []byte) []byte         { return append(b, "fake"...) }
func (fakeHash) Reset()                      {}
func (fakeHash) Size() int                   { return 4 }
func (fakeHash) BlockSize() int              { return 1 }

func TestSumIsDeterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Errorf("Sum(%q) is not deterministic: %q != %q", "hello", a, b)
	}
}

func TestSumDiffersForDifferentInput(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("world"))
	if a == b {
		t.Error("Sum() produced the same digest for different inputs")
	}
}

func TestSumReaderMatchesSum(t *testing.T) {
	want := Sum([]byte("stream me"))
	got, err := SumReader(strings.NewReader("stream me"))
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("SumReader() = %q, want %q", got, want)
	}
}

func TestSumStringsDependsOnArgumentBoundaries(t *testing.T) {
	a := SumStrings("ab", "c")
	b := SumStrings("a", "bc")
	if a == b {
		t.Error("SumStrings should not collide across different argument splits of the same concatenation")
	}
}

func TestSumStringsIsOrderSensitive(t *testing.T) {
	a := SumStrings("one", "two")
	b := SumStrings("two", "one")
	if a == b {
		t.Error("SumStrings should be sensitive to argument order")
	}
}

func TestRegisterInstallsAlternateAlgorithm(t *testing.T) {
	original := algo
	defer Register(original)

	Register(newFakeHash)
	got := Sum([]byte("anything"))
	if got != "66616b65" { // hex for "fake"
		t.Errorf("Sum() with a registered fake hash = %q, want %q", got, "66616b65")
	}
}
