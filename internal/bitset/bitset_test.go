package bitset

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// reference is a deliberately naive per-bit bitset used to check the
// word-granularity implementation for bit-exact parity.
type reference struct {
	bits []bool
}

func newReference(size int, pattern string) *reference {
	r := &reference{bits: make([]bool, size)}
	for i := 0; i < size; i++ {
		switch pattern {
		case "zero":
			r.bits[i] = false
		case "one":
			r.bits[i] = true
		case "alt":
			r.bits[i] = i%2 == 0
		case "third":
			r.bits[i] = i%3 == 0
		case "mid":
			r.bits[i] = i == size/2
		}
	}
	return r
}

func fromPattern(size int, pattern string) *Fixed {
	ref := newReference(size, pattern)
	b := NewFixed(size)
	for i, v := range ref.bits {
		if v {
			b.Set(i)
		}
	}
	return b
}

func toBoolSlice(b *Fixed) []bool {
	out := make([]bool, b.Size())
	for i := range out {
		out[i] = b.Test(i)
	}
	return out
}

var sizes = []int{1, 2, 3, 4, 5, 6, 7, 8, 32, 63, 64, 65, 127, 128, 255, 1024, 8192, 65536}
var patterns = []string{"zero", "one", "alt", "third", "mid"}

func TestSetResetFlipCount(t *testing.T) {
	for _, size := range sizes {
		for _, pattern := range patterns {
			ref := newReference(size, pattern)
			b := fromPattern(size, pattern)
			if diff := cmp.Diff(ref.bits, toBoolSlice(b)); diff != "" {
				t.Fatalf("size=%d pattern=%s: initial mismatch (-want +got):\n%s", size, pattern, diff)
			}
			count := 0
			for _, v := range ref.bits {
				if v {
					count++
				}
			}
			if got := b.Count(); got != count {
				t.Errorf("size=%d pattern=%s: Count() = %d, want %d", size, pattern, got, count)
			}
			if got, want := b.Any(), count > 0; got != want {
				t.Errorf("size=%d pattern=%s: Any() = %v, want %v", size, pattern, got, want)
			}
			if got, want := b.None(), count == 0; got != want {
				t.Errorf("size=%d pattern=%s: None() = %v, want %v", size, pattern, got, want)
			}
			if got, want := b.All(), count == size; got != want {
				t.Errorf("size=%d pattern=%s: All() = %v, want %v", size, pattern, got, want)
			}

			// Flip every bit and compare against the negated reference.
			for i := 0; i < size; i++ {
				b.Flip(i)
				ref.bits[i] = !ref.bits[i]
			}
			if diff := cmp.Diff(ref.bits, toBoolSlice(b)); diff != "" {
				t.Fatalf("size=%d pattern=%s: flip mismatch (-want +got):\n%s", size, pattern, diff)
			}
		}
	}
}

func TestBitwiseOps(t *testing.T) {
	for _, size := range sizes {
		for _, pa := range patterns {
			for _, pb := range patterns {
				refA := newReference(size, pa)
				refB := newReference(size, pb)
				b := fromPattern(size, pb)

				and := fromPattern(size, pa)
				and.And(b)
				wantAnd := make([]bool, size)
				for i := range wantAnd {
					wantAnd[i] = refA.bits[i] && refB.bits[i]
				}
				if diff := cmp.Diff(wantAnd, toBoolSlice(and)); diff != "" {
					t.Fatalf("size=%d %s&%s AND mismatch (-want +got):\n%s", size, pa, pb, diff)
				}

				or := fromPattern(size, pa)
				or.Or(b)
				wantOr := make([]bool, size)
				for i := range wantOr {
					wantOr[i] = refA.bits[i] || refB.bits[i]
				}
				if diff := cmp.Diff(wantOr, toBoolSlice(or)); diff != "" {
					t.Fatalf("size=%d %s|%s OR mismatch (-want +got):\n%s", size, pa, pb, diff)
				}

				xor := fromPattern(size, pa)
				xor.Xor(b)
				wantXor := make([]bool, size)
				for i := range wantXor {
					wantXor[i] = refA.bits[i] != refB.bits[i]
				}
				if diff := cmp.Diff(wantXor, toBoolSlice(xor)); diff != "" {
					t.Fatalf("size=%d %s^%s XOR mismatch (-want +got):\n%s", size, pa, pb, diff)
				}

				not := fromPattern(size, pa)
				not.Not()
				wantNot := make([]bool, size)
				for i := range wantNot {
					wantNot[i] = !refA.bits[i]
				}
				if diff := cmp.Diff(wantNot, toBoolSlice(not)); diff != "" {
					t.Fatalf("size=%d %s NOT mismatch (-want +got):\n%s", size, pa, diff)
				}
			}
		}
	}
}

var shiftAmounts = []int{0, 1, 2, 3, 7, 8, 15, 31, 63, 64, 65}

func TestShifts(t *testing.T) {
	for _, size := range sizes {
		amounts := append(append([]int{}, shiftAmounts...), size-1, size, size+1)
		for _, pattern := range patterns {
			for _, n := range amounts {
				if n < 0 {
					continue
				}
				ref := newReference(size, pattern)
				wantLeft := make([]bool, size)
				for i := 0; i < size; i++ {
					if i-n >= 0 {
						wantLeft[i] = ref.bits[i-n]
					}
				}
				b := fromPattern(size, pattern)
				b.ShiftLeft(n)
				if diff := cmp.Diff(wantLeft, toBoolSlice(b)); diff != "" {
					t.Fatalf("size=%d pattern=%s shl %d mismatch (-want +got):\n%s", size, pattern, n, diff)
				}

				wantRight := make([]bool, size)
				for i := 0; i < size; i++ {
					if i+n < size {
						wantRight[i] = ref.bits[i+n]
					}
				}
				b2 := fromPattern(size, pattern)
				b2.ShiftRight(n)
				if diff := cmp.Diff(wantRight, toBoolSlice(b2)); diff != "" {
					t.Fatalf("size=%d pattern=%s shr %d mismatch (-want +got):\n%s", size, pattern, n, diff)
				}
			}
		}
	}
}

func TestToString(t *testing.T) {
	b := NewFixed(8)
	b.Set(0)
	b.Set(1)
	if got, want := b.String(), "00000011"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestEqualRangeAssignRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, size := range []int{1, 7, 8, 9, 63, 64, 65, 200} {
		a := NewFixed(size)
		b := NewFixed(size)
		for i := 0; i < size; i++ {
			if rng.Intn(2) == 0 {
				a.Set(i)
			}
			if rng.Intn(2) == 0 {
				b.Set(i)
			}
		}
		for _, bounds := range [][2]int{{0, size}, {1, size}, {0, size - 1}, {size / 3, size}} {
			lo, hi := bounds[0], bounds[1]
			if lo < 0 || hi > size || lo > hi {
				continue
			}
			want := true
			for i := lo; i < hi; i++ {
				if a.Test(i) != b.Test(i) {
					want = false
					break
				}
			}
			if got := EqualRange(a, b, lo, hi); got != want {
				t.Fatalf("size=%d [%d,%d): EqualRange = %v, want %v", size, lo, hi, got, want)
			}
		}

		// AssignRange must match a per-bit copy.
		dst := NewFixed(size)
		refDst := make([]bool, size)
		lo, hi := size/4, size-size/4
		if hi < lo {
			hi = lo
		}
		AssignRange(dst, a, lo, hi)
		for i := 0; i < size; i++ {
			if i >= lo && i < hi {
				refDst[i] = a.Test(i)
			}
		}
		if diff := cmp.Diff(refDst, toBoolSlice(dst)); diff != "" {
			t.Fatalf("size=%d AssignRange [%d,%d) mismatch (-want +got):\n%s", size, lo, hi, diff)
		}
	}
}

func TestDynamicGrow(t *testing.T) {
	d := NewDynamic(10)
	d.Set(9)
	d.Grow(200)
	if d.Size() != 200 {
		t.Fatalf("Size() = %d, want 200", d.Size())
	}
	if !d.Test(9) {
		t.Fatal("bit 9 lost across Grow")
	}
	if d.Test(150) {
		t.Fatal("newly grown bit should be zero")
	}
}
