package translate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/audiora/audiora/pkg/provider/translate"
)

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	p := translate.DefaultRetryPolicy()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	t.Parallel()

	var zero translate.RetryPolicy
	if got := zero.Retries(); got != translate.DefaultMaxRetries {
		t.Errorf("Retries = %d, want %d", got, translate.DefaultMaxRetries)
	}
	if got := (translate.RetryPolicy{MaxRetries: -1}).Retries(); got != 0 {
		t.Errorf("negative MaxRetries gives %d retries, want 0", got)
	}
}

func TestDo(t *testing.T) {
	t.Parallel()

	fast := translate.RetryPolicy{Base: time.Millisecond, Cap: time.Millisecond, MaxRetries: 3}

	t.Run("retryable then success", func(t *testing.T) {
		t.Parallel()
		calls := 0
		got, err := translate.Do(context.Background(), fast, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &translate.Error{Kind: translate.ErrServer, StatusCode: 503}
			}
			return "ok", nil
		}, nil)
		if err != nil || got != "ok" || calls != 3 {
			t.Errorf("got %q, %v after %d calls", got, err, calls)
		}
	})

	t.Run("non-retryable stops immediately", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := translate.Do(context.Background(), fast, func(context.Context) (string, error) {
			calls++
			return "", &translate.Error{Kind: translate.ErrClient, StatusCode: 404}
		}, nil)
		if calls != 1 || translate.KindOf(err) != translate.ErrClient {
			t.Errorf("calls = %d, err = %v", calls, err)
		}
	})

	t.Run("cancelled during wait", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		slow := translate.RetryPolicy{Base: time.Hour, Cap: time.Hour, MaxRetries: 1}
		_, err := translate.Do(ctx, slow, func(context.Context) (int, error) {
			return 0, &translate.Error{Kind: translate.ErrRateLimited}
		}, func(int, error) { cancel() })
		if !translate.IsCancelled(err) {
			t.Errorf("err = %v, want cancelled", err)
		}
	})
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want translate.ErrorKind
	}{
		{"nil", nil, translate.ErrUnknown},
		{"canceled", context.Canceled, translate.ErrCancelled},
		{"wrapped canceled", errors.Join(errors.New("x"), context.Canceled), translate.ErrCancelled},
		{"deadline", context.DeadlineExceeded, translate.ErrServer},
		{"typed", &translate.Error{Kind: translate.ErrRateLimited}, translate.ErrRateLimited},
		{"plain", errors.New("boom"), translate.ErrUnknown},
	}
	for _, tc := range tests {
		if got := translate.KindOf(tc.err); got != tc.want {
			t.Errorf("%s: KindOf = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	if err := (translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"}).Validate(); err != nil {
		t.Errorf("valid request: %v", err)
	}
	if err := (translate.Request{Kind: "x"}).Validate(); err == nil {
		t.Error("expected error for invalid request")
	}
}
