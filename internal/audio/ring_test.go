package audio

import (
	"math/rand"
	"testing"
)

func seq(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}

func TestRing_Append(t *testing.T) {
	r := NewRing(10)

	if dropped := r.Append(seq(0, 4)); dropped != 0 {
		t.Errorf("Expected 0 dropped, got %d", dropped)
	}
	if r.Len() != 4 {
		t.Errorf("Expected length 4, got %d", r.Len())
	}

	r.Append(seq(4, 3))
	if r.Len() != 7 {
		t.Errorf("Expected length 7, got %d", r.Len())
	}
}

func TestRing_AppendEmptyIsNoop(t *testing.T) {
	r := NewRing(10)
	r.Append(nil)
	r.Append([]float32{})
	if r.Len() != 0 {
		t.Errorf("Expected empty ring, got length %d", r.Len())
	}
}

func TestRing_TrimsPartialChunk(t *testing.T) {
	r := NewRing(5)

	r.Append(seq(0, 4))
	dropped := r.Append(seq(4, 3)) // 7 samples, 2 over capacity

	if dropped != 2 {
		t.Errorf("Expected 2 dropped, got %d", dropped)
	}
	if r.Len() != 5 {
		t.Errorf("Expected length to hit capacity exactly, got %d", r.Len())
	}

	got := r.Last(5)
	want := []float32{2, 3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestRing_TrimsWholeChunks(t *testing.T) {
	r := NewRing(3)

	dropped := r.Append(seq(0, 2))
	dropped += r.Append(seq(2, 2))
	last := r.Append(seq(4, 3))
	dropped += last

	if last != 3 {
		t.Errorf("Expected 3 dropped by the last append, got %d", last)
	}
	if dropped != 4 {
		t.Errorf("Expected 4 dropped in total, got %d", dropped)
	}
	got := r.Last(10)
	if len(got) != 3 || got[0] != 4 || got[2] != 6 {
		t.Errorf("Expected [4 5 6], got %v", got)
	}
}

func TestRing_ChunkLargerThanCapacity(t *testing.T) {
	r := NewRing(4)
	r.Append(seq(0, 10))

	got := r.Last(4)
	want := []float32{6, 7, 8, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestRing_LastEdgeCases(t *testing.T) {
	r := NewRing(10)

	if got := r.Last(5); len(got) != 0 {
		t.Errorf("Expected empty result from empty ring, got %v", got)
	}

	r.Append(seq(0, 3))
	if got := r.Last(0); len(got) != 0 {
		t.Errorf("Expected empty result for n=0, got %v", got)
	}
	if got := r.Last(-1); len(got) != 0 {
		t.Errorf("Expected empty result for n<0, got %v", got)
	}
	if got := r.Last(100); len(got) != 3 {
		t.Errorf("Expected 3 samples when n > len, got %d", len(got))
	}
}

func TestRing_LastDoesNotAlias(t *testing.T) {
	r := NewRing(10)
	chunk := seq(0, 3)
	r.Append(chunk)

	chunk[0] = 99 // caller mutation after append
	got := r.Last(3)
	if got[0] != 0 {
		t.Errorf("Expected ring to own its copy, got %v", got)
	}

	got[1] = 42
	if again := r.Last(3); again[1] != 1 {
		t.Errorf("Expected Last to return a fresh copy, got %v", again)
	}
}

func TestRing_Reset(t *testing.T) {
	r := NewRing(10)
	r.Append(seq(0, 5))
	r.Reset()

	if r.Len() != 0 {
		t.Errorf("Expected length 0 after reset, got %d", r.Len())
	}
	if r.Capacity() != 10 {
		t.Errorf("Expected capacity 10 after reset, got %d", r.Capacity())
	}
}

// Random pushes checked against a naive concatenation of the whole stream
func TestRing_MatchesNaiveReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 200; trial++ {
		capacity := rng.Intn(20)
		r := NewRing(capacity)
		var stream []float32
		next := 0

		for push := 0; push < 30; push++ {
			n := rng.Intn(9)
			chunk := seq(next, n)
			next += n
			stream = append(stream, chunk...)
			r.Append(chunk)

			if r.Len() > capacity {
				t.Fatalf("trial %d: length %d exceeds capacity %d", trial, r.Len(), capacity)
			}

			want := len(stream)
			if want > capacity {
				want = capacity
			}
			if r.Len() != want {
				t.Fatalf("trial %d: expected length %d, got %d", trial, want, r.Len())
			}

			q := rng.Intn(25) - 2
			got := r.Last(q)
			expectN := q
			if expectN > r.Len() {
				expectN = r.Len()
			}
			if expectN < 0 {
				expectN = 0
			}
			if len(got) != expectN {
				t.Fatalf("trial %d: Last(%d) returned %d samples, want %d", trial, q, len(got), expectN)
			}
			ref := stream[len(stream)-expectN:]
			for i := range ref {
				if got[i] != ref[i] {
					t.Fatalf("trial %d: Last(%d) = %v, want %v", trial, q, got, ref)
				}
			}
		}
	}
}
