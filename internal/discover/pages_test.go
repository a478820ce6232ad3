// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// listingServer serves scripted listing pages keyed by request URI and
// records every request it receives.
type listingServer struct {
	*httptest.Server
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func newListingServer(t *testing.T, pages map[string]string) *listingServer {
	t.Helper()
	ls := &listingServer{pages: pages}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.mu.Lock()
		ls.calls = append(ls.calls, r.URL.RequestURI())
		body, ok := ls.pages[r.URL.RequestURI()]
		ls.mu.Unlock()
		if !ok {
			body = "<html><body></body></html>"
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ls.Close)
	return ls
}

func newTestPages(ls *listingServer) *Pages {
	client := &httputil.Client{HTTP: ls.Client(), MaxRetries: -1}
	return NewPages(client, nil, types.DiscoveryConfig{BaseURL: ls.URL, RootPath: "/frbr/sgd"}, zerolog.Nop())
}

func collect(t *testing.T, seq func(func(string, error) bool)) []string {
	t.Helper()
	var out []string
	for s, err := range seq {
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestSubareas_PaginationTerminates(t *testing.T) {
	ls := newListingServer(t, map[string]string{
		"/frbr/sgd": `<a href="/frbr/sgd/area1">area1</a>`,
	})
	p := newTestPages(ls)

	got := collect(t, p.Subareas(context.Background()))

	assert.Equal(t, []string{"/frbr/sgd/area1"}, got)
	assert.Equal(t, []string{"/frbr/sgd", "/frbr/sgd?start=11"}, ls.calls)
}

func TestSubareas_PathShapeFilter(t *testing.T) {
	ls := newListingServer(t, map[string]string{
		"/frbr/sgd": `
			<a href="/frbr/sgd/1815">1815</a>
			<a href="/frbr/sgd/1815/0001">doc</a>
			<a href="/frbr/sgd?start=11">next</a>
			<a href="/frbr">up</a>
			<a href="https://elsewhere.example/frbr/sgd/1900">offsite</a>
			<a href="1816/">relative</a>
			<a href="/frbr/sgd/1815/">again</a>`,
	})
	p := newTestPages(ls)

	got := collect(t, p.Subareas(context.Background()))

	assert.Equal(t, []string{"/frbr/sgd/1815", "/frbr/sgd/1816"}, got)
}

func TestSubareas_StopsWhenPageRepeats(t *testing.T) {
	page := `<a href="/frbr/sgd/a">a</a><a href="/frbr/sgd/b">b</a>`
	ls := newListingServer(t, map[string]string{
		"/frbr/sgd":          page,
		"/frbr/sgd?start=11": page,
	})
	p := newTestPages(ls)

	got := collect(t, p.Subareas(context.Background()))

	assert.Equal(t, []string{"/frbr/sgd/a", "/frbr/sgd/b"}, got)
	assert.Len(t, ls.calls, 2)
}

func TestDocuments_SortedAndScoped(t *testing.T) {
	ls := newListingServer(t, map[string]string{
		"/frbr/sgd/1815": `
			<a href="/frbr/sgd/1815/0003">3</a>
			<a href="/frbr/sgd/1815/0001">1</a>
			<a href="/frbr/sgd/1816/0009">other subarea</a>
			<a href="/frbr/sgd/1815/0001/1/ocr">too deep</a>`,
		"/frbr/sgd/1815?start=11": `<a href="/frbr/sgd/1815/0002">2</a>`,
	})
	p := newTestPages(ls)

	docs, err := p.Documents(context.Background(), "/frbr/sgd/1815")
	require.NoError(t, err)

	assert.Equal(t, []string{"/frbr/sgd/1815/0001", "/frbr/sgd/1815/0002", "/frbr/sgd/1815/0003"}, docs)
	assert.Equal(t, []string{"/frbr/sgd/1815", "/frbr/sgd/1815?start=11", "/frbr/sgd/1815?start=22"}, ls.calls)
}

func TestItems_RecentSubareas(t *testing.T) {
	ls := newListingServer(t, map[string]string{
		"/frbr/sgd":      `<a href="/frbr/sgd/1816">b</a><a href="/frbr/sgd/1814">a</a><a href="/frbr/sgd/1815">c</a>`,
		"/frbr/sgd/1815": `<a href="/frbr/sgd/1815/0001">x</a>`,
		"/frbr/sgd/1816": `<a href="/frbr/sgd/1816/0001">y</a>`,
	})
	p := newTestPages(ls)
	p.Recent = 2

	var ids []string
	for item, err := range p.Items(context.Background()) {
		require.NoError(t, err)
		assert.Equal(t, item.ID, item.Path)
		ids = append(ids, item.ID)
	}

	assert.Equal(t, []string{"/frbr/sgd/1815/0001", "/frbr/sgd/1816/0001"}, ids)
	assert.NotContains(t, ls.calls, "/frbr/sgd/1814")
}

func TestItems_SubareaFailureIsSkipped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.RequestURI() {
		case "/frbr/sgd":
			fmt.Fprint(w, `<a href="/frbr/sgd/broken">b</a><a href="/frbr/sgd/ok">o</a>`)
		case "/frbr/sgd/broken":
			w.WriteHeader(http.StatusForbidden)
		case "/frbr/sgd/ok":
			fmt.Fprint(w, `<a href="/frbr/sgd/ok/1">1</a>`)
		}
	}))
	defer ts.Close()

	client := &httputil.Client{HTTP: ts.Client(), MaxRetries: -1}
	p := NewPages(client, nil, types.DiscoveryConfig{BaseURL: ts.URL, RootPath: "/frbr/sgd"}, zerolog.Nop())

	var ids []string
	for item, err := range p.Items(context.Background()) {
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"/frbr/sgd/ok/1"}, ids)
}

func TestItems_RootFailureIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := &httputil.Client{HTTP: ts.Client(), MaxRetries: -1}
	p := NewPages(client, nil, types.DiscoveryConfig{BaseURL: ts.URL, RootPath: "/frbr/sgd"}, zerolog.Nop())

	var gotErr error
	for _, err := range p.Items(context.Background()) {
		if err != nil {
			gotErr = err
		}
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "HTTP 503")
}

func TestSubareas_LaterPageFailureEndsListing(t *testing.T) {
	var calls []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.RequestURI())
		switch r.URL.RequestURI() {
		case "/frbr/sgd":
			fmt.Fprint(w, `<a href="/frbr/sgd/1815">1815</a><a href="/frbr/sgd/1816">1816</a>`)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer ts.Close()

	client := &httputil.Client{HTTP: ts.Client(), MaxRetries: -1}
	p := NewPages(client, nil, types.DiscoveryConfig{BaseURL: ts.URL, RootPath: "/frbr/sgd"}, zerolog.Nop())

	got := collect(t, p.Subareas(context.Background()))
	assert.Equal(t, []string{"/frbr/sgd/1815", "/frbr/sgd/1816"}, got)
	assert.Equal(t, []string{"/frbr/sgd", "/frbr/sgd?start=11"}, calls)
}

func TestSegments(t *testing.T) {
	root := "/frbr/sgd"
	assert.Nil(t, Segments(root, "/frbr/sgd"))
	assert.Nil(t, Segments(root, "/frbr/sgdx/1"))
	assert.Equal(t, []string{"1815"}, Segments(root, "/frbr/sgd/1815/"))
	assert.True(t, IsSubarea(root, "/frbr/sgd/1815"))
	assert.False(t, IsSubarea(root, "/frbr/sgd/1815/0001"))
	assert.True(t, IsDocument(root, "/frbr/sgd/1815/0001"))
	assert.False(t, IsDocument(root, "/frbr/sgd/1815/0001/1"))
	assert.Equal(t, "/frbr/sgd/1815", SubareaOf(root, "/frbr/sgd/1815/0001"))
}

func TestLinks_ResolvesRelative(t *testing.T) {
	base, err := url.Parse("https://repository.overheid.nl/frbr/sgd/")
	require.NoError(t, err)

	links, err := Links([]byte(`<a href='1999/'>1999</a><a href='foo?x=1'>foo</a><a href="#top">top</a><a href="mailto:x@y">m</a>`), base)
	require.NoError(t, err)
	assert.Equal(t, []string{"/frbr/sgd/1999", "/frbr/sgd/foo"}, links)
}
