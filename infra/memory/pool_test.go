package memory

import "testing"

type payload struct {
	a, b uint64
}

func TestPoolAcquireRelease(t *testing.T) {
	p := NewPool[payload](8)
	if p.Free() != 8 {
		t.Fatalf("Free = %d, want 8", p.Free())
	}
	var held []*payload
	for i := 0; i < 8; i++ {
		v, ok := p.Acquire()
		if !ok {
			t.Fatalf("acquire %d failed", i)
		}
		if v.a != 0 || v.b != 0 {
			t.Fatal("acquired slot not zeroed")
		}
		v.a = uint64(i)
		held = append(held, v)
	}
	if _, ok := p.Acquire(); ok {
		t.Fatal("acquire succeeded on exhausted pool")
	}
	for _, v := range held {
		p.Release(v)
	}
	if p.Free() != 8 {
		t.Fatalf("Free = %d after full release, want 8", p.Free())
	}
	// Reused slots come back zeroed.
	v, _ := p.Acquire()
	if v.a != 0 {
		t.Fatal("reused slot not zeroed")
	}
}

func TestPoolDoubleReleasePanics(t *testing.T) {
	p := NewPool[payload](2)
	v, _ := p.Acquire()
	p.Release(v)
	defer func() {
		if recover() == nil {
			t.Fatal("double release did not panic")
		}
	}()
	p.Release(v)
}

func TestPoolForeignPointerPanics(t *testing.T) {
	p := NewPool[payload](2)
	defer func() {
		if recover() == nil {
			t.Fatal("foreign pointer release did not panic")
		}
	}()
	p.Release(&payload{})
}

func BenchmarkPoolAcquireRelease(b *testing.B) {
	p := NewPool[payload](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, _ := p.Acquire()
		p.Release(v)
	}
}
