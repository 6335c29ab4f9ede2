package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/audiora/audiora/pkg/provider/translate"
	"github.com/audiora/audiora/pkg/provider/translate/mock"
)

func TestNewService_NilProvider(t *testing.T) {
	t.Parallel()
	if _, err := NewService(nil, nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestService_LookupCachesSuccess(t *testing.T) {
	t.Parallel()

	prov := &mock.Provider{Translations: map[string]string{"hola": "hello"}}
	svc, err := NewService(prov, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	req := translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"}

	first, err := svc.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("first Lookup: %v", err)
	}
	second, err := svc.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("second Lookup: %v", err)
	}

	if first.Text != "hello" || first.Cached {
		t.Errorf("first = %+v, want uncached hello", first)
	}
	if second.Text != "hello" || !second.Cached {
		t.Errorf("second = %+v, want cached hello", second)
	}
	if n := prov.CallCount(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestService_LookupDoesNotCacheFailure(t *testing.T) {
	t.Parallel()

	prov := &mock.Provider{Err: &translate.Error{Kind: translate.ErrServer, StatusCode: 503}}
	svc, _ := NewService(prov, nil)
	req := translate.Request{Kind: translate.KindLine, Text: "hola amigo", Language: "es"}

	for range 2 {
		_, err := svc.Lookup(context.Background(), req)
		if translate.KindOf(err) != translate.ErrServer {
			t.Fatalf("KindOf(err) = %v, want server", translate.KindOf(err))
		}
	}
	if n := prov.CallCount(); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}
	if svc.Cache().Len() != 0 {
		t.Errorf("cache has %d entries, want 0", svc.Cache().Len())
	}
}

func TestService_LookupSharedCache(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	cache.Set(translate.KindWord, "gato", "es", "cat")
	prov := &mock.Provider{}
	svc, _ := NewService(prov, cache)

	res, err := svc.Lookup(context.Background(), translate.Request{Kind: translate.KindWord, Text: "gato", Language: "es"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Text != "cat" || prov.CallCount() != 0 {
		t.Errorf("res = %+v, calls = %d; want cached cat and no calls", res, prov.CallCount())
	}
}

func TestService_LookupInvalidRequest(t *testing.T) {
	t.Parallel()

	prov := &mock.Provider{}
	svc, _ := NewService(prov, nil)
	_, err := svc.Lookup(context.Background(), translate.Request{Kind: translate.KindWord, Language: "es"})
	if err == nil {
		t.Fatal("expected error for empty text")
	}
	if prov.CallCount() != 0 {
		t.Error("provider called for invalid request")
	}
}

func TestService_LookupCancelled(t *testing.T) {
	t.Parallel()

	prov := &mock.Provider{TranslateFunc: func(ctx context.Context, _ translate.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	svc, _ := NewService(prov, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Lookup(ctx, translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"})
	if !errors.Is(err, context.Canceled) || !translate.IsCancelled(err) {
		t.Errorf("err = %v, want cancellation", err)
	}
}
