package app

import "testing"

func TestUploadLimiter(t *testing.T) {
	l := NewUploadLimiter()

	release, ok := l.TryAcquire("m1/u1")
	if !ok {
		t.Fatal("first acquire must succeed")
	}
	if _, ok := l.TryAcquire("m1/u1"); ok {
		t.Fatal("second acquire on the same key must fail")
	}
	if _, ok := l.TryAcquire("m1/u2"); !ok {
		t.Fatal("other key must not be blocked")
	}

	release()
	release() // повторный вызов безопасен
	if l.Busy("m1/u1") {
		t.Fatal("key still busy after release")
	}
	if _, ok := l.TryAcquire("m1/u1"); !ok {
		t.Fatal("acquire after release must succeed")
	}
}
