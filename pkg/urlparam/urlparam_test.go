package urlparam

import (
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/adapter"
	"github.com/vango-dev/searchparams/pkg/adapter/history"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func TestPlainString(t *testing.T) {
	h := history.New("/search")
	q := New(h, "q", "", quiet)

	if got := q.Get(); got != "" {
		t.Errorf("Get() = %q, want empty default", got)
	}
	if err := q.Set("go lang"); err != nil {
		t.Fatal(err)
	}
	if got, want := h.Location(), "/search?q=go+lang"; got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
	if got := q.Get(); got != "go lang" {
		t.Errorf("Get() = %q, want %q", got, "go lang")
	}
	if err := q.Reset(); err != nil {
		t.Fatal(err)
	}
	if got := h.Location(); got != "/search" {
		t.Errorf("after Reset Location() = %q, want /search", got)
	}
}

func TestPlainInt(t *testing.T) {
	h := history.New("/p?page=3")
	page := New(h, "page", 1, quiet)

	if got := page.Get(); got != 3 {
		t.Errorf("Get() = %d, want 3", got)
	}

	tests := []struct {
		set  int
		want string
	}{
		{2, "/p?page=2"},
		{1, "/p"}, // default is left out
		{10, "/p?page=10"},
	}
	for _, tt := range tests {
		if err := page.Set(tt.set); err != nil {
			t.Fatal(err)
		}
		if got := h.Location(); got != tt.want {
			t.Errorf("Set(%d): Location() = %q, want %q", tt.set, got, tt.want)
		}
	}
}

func TestPlainSlice(t *testing.T) {
	h := history.New("/p")
	tags := New(h, "tags", []string(nil), quiet)

	if err := tags.Set([]string{"go", "web"}); err != nil {
		t.Fatal(err)
	}
	if got, want := h.Location(), "/p?tags=go&tags=web"; got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
	if got, want := tags.Get(), []string{"go", "web"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}

	if err := tags.Set([]string{}); err != nil {
		t.Fatal(err)
	}
	if got := h.Location(); got != "/p" {
		t.Errorf("empty slice: Location() = %q, want /p", got)
	}
}

func TestDecodeFailureFallsBack(t *testing.T) {
	h := history.New("/p?page=abc")
	var reported []error
	page := New(h, "page", 1, quiet, WithDiagnostics(func(err error) {
		reported = append(reported, err)
	}))

	if got := page.Get(); got != 1 {
		t.Errorf("Get() = %d, want default 1", got)
	}
	if len(reported) != 1 {
		t.Fatalf("reported %d errors, want 1", len(reported))
	}
	if code := errors.CodeOf(reported[0]); code != "E010" {
		t.Errorf("code = %q, want E010", code)
	}
}

type Filters struct {
	Category string `url:"cat"`
	SortBy   string `url:"sort"`
	Page     int
	Internal string `url:"-"`
}

func TestFlatEncoding(t *testing.T) {
	h := history.New("/products?view=grid")
	filters := New(h, "", Filters{}, WithEncoding(EncodingFlat), quiet)

	if err := filters.Set(Filters{Category: "tech", SortBy: "asc", Internal: "x"}); err != nil {
		t.Fatal(err)
	}
	if got, want := h.Location(), "/products?view=grid&cat=tech&sort=asc"; got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
	if got, want := filters.Get(), (Filters{Category: "tech", SortBy: "asc"}); got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	h.PushState("/products?page=2&cat=books")
	if got, want := filters.Get(), (Filters{Category: "books", Page: 2}); got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	if err := filters.Reset(); err != nil {
		t.Fatal(err)
	}
	if got := h.Location(); got != "/products" {
		t.Errorf("after Reset Location() = %q, want /products", got)
	}
}

func TestJSONEncoding(t *testing.T) {
	type filter struct {
		Cat string `json:"cat"`
	}
	h := history.New("/p")
	f := New(h, "filter", filter{}, WithEncoding(EncodingJSON), quiet)

	if err := f.Set(filter{Cat: "tech"}); err != nil {
		t.Fatal(err)
	}
	if got, want := h.Location(), "/p?filter=eyJjYXQiOiJ0ZWNoIn0"; got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
	if got := f.Get(); got.Cat != "tech" {
		t.Errorf("Get() = %+v, want cat tech", got)
	}

	h.PushState("/p?filter=!!!")
	if got := f.Get(); got != (filter{}) {
		t.Errorf("undecodable Get() = %+v, want default", got)
	}
}

func TestCommaEncoding(t *testing.T) {
	h := history.New("/p")
	tags := New(h, "tags", []string{}, WithEncoding(EncodingComma), quiet)

	if err := tags.Set([]string{"go", "web", "api"}); err != nil {
		t.Fatal(err)
	}
	if got, want := h.Location(), "/p?tags=go%2Cweb%2Capi"; got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
	if got, want := tags.Get(), []string{"go", "web", "api"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}

	ids := New(h, "ids", []int(nil), WithEncoding(EncodingComma), quiet)
	h.PushState("/p?ids=1,2,3")
	if got, want := ids.Get(), []int{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}
}

func TestCommaNeedsSlice(t *testing.T) {
	h := history.New("/p?n=5")
	var reported []error
	n := New(h, "n", 0, WithEncoding(EncodingComma), quiet, WithDiagnostics(func(err error) {
		reported = append(reported, err)
	}))
	if got := n.Get(); got != 0 {
		t.Errorf("Get() = %d, want 0", got)
	}
	if len(reported) != 1 || errors.CodeOf(reported[0]) != "E010" {
		t.Errorf("reported = %v, want one E010", reported)
	}
}

func TestModes(t *testing.T) {
	h := history.New("/p")

	q := New(h, "q", "", Replace, quiet)
	if err := q.Set("a"); err != nil {
		t.Fatal(err)
	}
	if got := h.Len(); got != 1 {
		t.Errorf("Replace: Len() = %d, want 1", got)
	}

	page := New(h, "page", 0, quiet)
	if err := page.Set(2); err != nil {
		t.Fatal(err)
	}
	if got := h.Len(); got != 2 {
		t.Errorf("default mode: Len() = %d, want 2", got)
	}

	r := history.New("/p", history.WithMode(adapter.ModeReplace))
	if err := New(r, "q", "", Push, quiet).Set("x"); err != nil {
		t.Fatal(err)
	}
	if got := r.Len(); got != 2 {
		t.Errorf("Push over replace host: Len() = %d, want 2", got)
	}
}

func TestDebounce(t *testing.T) {
	h := history.New("/p")
	q := New(h, "q", "", Debounce(time.Hour), quiet)

	for _, v := range []string{"g", "go", "gol"} {
		if err := q.Set(v); err != nil {
			t.Fatal(err)
		}
	}
	if !q.Pending() {
		t.Fatal("Pending() = false, want true")
	}
	if got := h.Location(); got != "/p" {
		t.Errorf("before Flush Location() = %q, want /p", got)
	}

	// A navigation elsewhere while waiting is kept.
	h.PushState("/p?page=2")
	q.Flush()

	if got, want := h.Location(), "/p?page=2&q=gol"; got != want {
		t.Errorf("Location() = %q, want %q", got, want)
	}
	if got := h.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
	if q.Pending() {
		t.Error("Pending() = true after Flush")
	}
}

func TestDebounceTimerFires(t *testing.T) {
	h := history.New("/p")
	q := New(h, "q", "", Debounce(10*time.Millisecond), quiet)
	if err := q.Set("x"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Location() != "/p?q=x" {
		if time.Now().After(deadline) {
			t.Fatalf("Location() = %q after deadline", h.Location())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEmptyKey(t *testing.T) {
	h := history.New("/p")
	err := New(h, "", 0, quiet).Set(1)
	if code := errors.CodeOf(err); code != "E001" {
		t.Errorf("code = %q, want E001", code)
	}
	if got := h.Location(); got != "/p" {
		t.Errorf("Location() = %q, want /p", got)
	}
}

func TestUpdate(t *testing.T) {
	h := history.New("/p")
	n := New(h, "n", 0, quiet)
	inc := func(v int) int { return v + 1 }

	for i := 0; i < 2; i++ {
		if err := n.Update(inc); err != nil {
			t.Fatal(err)
		}
	}
	if got := h.Location(); got != "/p?n=2" {
		t.Errorf("Location() = %q, want /p?n=2", got)
	}
	if n.Key() != "n" {
		t.Errorf("Key() = %q", n.Key())
	}
}
