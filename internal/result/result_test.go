package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNormalizePassesCodedErrors(t *testing.T) {
	orig := Errorf(400, "name is required")
	got := Normalize(fmt.Errorf("wrapped: %w", orig), "create")
	if got.Code != 400 || got.Message != "name is required" {
		t.Fatalf("got %+v", got)
	}
}

func TestNormalizeWrapsPlainErrors(t *testing.T) {
	got := Normalize(errors.New("connection refused"), "create")
	if got.Code != 500 {
		t.Fatalf("code = %d", got.Code)
	}
	if got.Message != "connection refused" {
		t.Fatalf("message = %q, the specific message is preferred", got.Message)
	}
}

func TestNormalizeFallbackMessage(t *testing.T) {
	got := Normalize(errors.New(""), "create context")
	if got.Message != "operation create context failed" {
		t.Fatalf("message = %q", got.Message)
	}
}

func TestNormalizeNil(t *testing.T) {
	if got := Normalize(nil, "noop"); got != nil {
		t.Fatalf("got %+v", got)
	}
}

func TestResultExactlyOneSide(t *testing.T) {
	ok := Ok("value")
	if !ok.Valid() {
		t.Fatal("Ok must hold exactly one side")
	}
	fail := Fail[string](errors.New("boom"), "op")
	if !fail.Valid() {
		t.Fatal("Fail must hold exactly one side")
	}
	var neither Result[string]
	if neither.Valid() {
		t.Fatal("a zero Result holds neither side and is invalid")
	}
}

func TestResultJSONKeepsBothFields(t *testing.T) {
	b, err := json.Marshal(Ok(7))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"data":7,"error":null}` {
		t.Fatalf("json = %s", b)
	}

	b, err = json.Marshal(Fail[int](Errorf(400, "bad"), "op"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"data":null,"error":{"code":400,"message":"bad"}}` {
		t.Fatalf("json = %s", b)
	}
}
