package cloudphoneerr_test

import (
	"errors"
	"strings"
	"testing"

	"cloudphone/internal/cloudphone/cloudphoneerr"
)

func TestFromProviderCode_Classification(t *testing.T) {
	cases := []struct {
		code      int
		wantKind  cloudphoneerr.Kind
		retryable bool
	}{
		{40007, cloudphoneerr.KindRateLimited, true},
		{42002, cloudphoneerr.KindPhoneNotRunning, false},
		{42004, cloudphoneerr.KindHigherVersion, false},
		{40004, cloudphoneerr.KindProviderLogical, false},
		{40005, cloudphoneerr.KindProviderLogical, false},
		{41001, cloudphoneerr.KindProviderLogical, false},
		{59999, cloudphoneerr.KindProviderLogical, true},
	}
	for _, c := range cases {
		err := cloudphoneerr.FromProviderCode(c.code, "msg")
		if err.Kind != c.wantKind {
			t.Errorf("code %d: expected kind %s, got %s", c.code, c.wantKind, err.Kind)
		}
		if got := cloudphoneerr.IsRetryable(err); got != c.retryable {
			t.Errorf("code %d: expected retryable=%v, got %v", c.code, c.retryable, got)
		}
	}
}

func TestIsPhoneNotRunning(t *testing.T) {
	err := cloudphoneerr.FromProviderCode(42002, "env not running")
	if !cloudphoneerr.IsPhoneNotRunning(err) {
		t.Fatal("expected phone-not-running classification")
	}
	if cloudphoneerr.IsPhoneNotRunning(cloudphoneerr.Transport(errors.New("x"))) {
		t.Fatal("transport error must not classify as phone-not-running")
	}
}

func TestTransportIsRetryable(t *testing.T) {
	err := cloudphoneerr.Transport(errors.New("dial tcp: timeout"))
	if !cloudphoneerr.IsRetryable(err) {
		t.Fatal("transport errors must be retryable")
	}
}

func TestIsUsernameTaken_SubstringMatch(t *testing.T) {
	cases := []struct {
		desc string
		want bool
	}{
		{"Username is already taken", true},
		{"the username is not available right now", true},
		{"USERNAME TAKEN", true},
		{"invalid character in username", false},
		{"", false},
	}
	for _, c := range cases {
		if got := cloudphoneerr.IsUsernameTaken(c.desc); got != c.want {
			t.Errorf("desc %q: expected %v, got %v", c.desc, c.want, got)
		}
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := cloudphoneerr.Cancelled()
	if !errors.Is(err, cloudphoneerr.ErrCancelled) {
		t.Fatal("expected errors.Is to match cancellation by kind")
	}
}

func TestMediaUnreachable_EnumeratesURLs(t *testing.T) {
	err := cloudphoneerr.MediaUnreachable([]string{"https://x/missing.mp4"})
	if err.Kind != cloudphoneerr.KindMediaUnreachable {
		t.Fatalf("expected media unreachable kind, got %s", err.Kind)
	}
	if !strings.Contains(err.Error(), "https://x/missing.mp4") {
		t.Fatalf("expected error message to enumerate the failing url, got %q", err.Error())
	}
}
