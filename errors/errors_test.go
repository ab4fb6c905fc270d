package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := Newf("queue.send", CodeInvalidParameter, "item length %d", 3)
	want := "[queue.send] invalid_parameter: item length 3"
	if err.Error() != want {
		t.Fatalf("Expected %q, got %q", want, err.Error())
	}
}

func TestError_FormatWithCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap("osal.new", CodeGeneric, cause, "setup failed")
	want := "[osal.new] error: setup failed (caused by: boom)"
	if err.Error() != want {
		t.Fatalf("Expected %q, got %q", want, err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("Expected cause to be reachable via errors.Is")
	}
}

func TestError_SentinelMatching(t *testing.T) {
	err := Timeout("sem.take")
	if !stderrors.Is(err, ErrTimeout) {
		t.Fatal("Timeout error should match ErrTimeout")
	}
	if stderrors.Is(err, ErrFull) {
		t.Fatal("Timeout error should not match ErrFull")
	}
}

func TestError_IsWithOp(t *testing.T) {
	err := InvalidHandle("mutex.lock", "stale handle")
	if !stderrors.Is(err, &Error{Op: "mutex.lock", Code: CodeInvalidHandle}) {
		t.Fatal("Expected match on op+code")
	}
	if stderrors.Is(err, &Error{Op: "mutex.unlock", Code: CodeInvalidHandle}) {
		t.Fatal("Should not match a different op")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != CodeOK {
		t.Fatal("nil error should report CodeOK")
	}
	if CodeOf(Full("queue.send")) != CodeFull {
		t.Fatal("Expected CodeFull")
	}
	if CodeOf(fmt.Errorf("other")) != CodeGeneric {
		t.Fatal("Foreign errors should report CodeGeneric")
	}
}

func TestOpOf(t *testing.T) {
	if OpOf(Empty("queue.peek")) != "queue.peek" {
		t.Fatal("Expected op queue.peek")
	}
	if OpOf(fmt.Errorf("other")) != "" {
		t.Fatal("Foreign errors have no op")
	}
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err  *Error
		code Code
	}{
		{NullPtr("task.create", "entry"), CodeNullPointer},
		{InvalidParam("sem.create", "max is zero"), CodeInvalidParameter},
		{InvalidParamf("task.create", "priority %d", 40), CodeInvalidParameter},
		{InvalidHandle("queue.send", "stale"), CodeInvalidHandle},
		{InvalidState("mutex.unlock", "not owner"), CodeInvalidState},
		{OutOfResources("mutex.create", "mutex slot"), CodeOutOfResources},
		{NotInitialized("osal.close"), CodeNotInitialized},
	}
	for _, c := range cases {
		if c.err.Code != c.code {
			t.Fatalf("Expected code %s, got %s", c.code, c.err.Code)
		}
	}
}
