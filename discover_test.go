package harvester

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rankPageOne = `<html><body>
<table>
<tr><th>Rank</th><th>Title</th><th>Rating</th></tr>
<tr><td>1</td><td><a href="/boardgame/174430/gloomhaven">Gloomhaven</a></td><td>8.6</td></tr>
<tr><td>2</td><td><a href="/boardgame/161936/pandemic-legacy">Pandemic Legacy</a></td><td>8.4</td></tr>
<tr><td colspan="3">Advertisement</td></tr>
<tr><td>3</td><td><a href="/boardgame/224517/brass-birmingham">Brass: Birmingham</a></td><td>8.7</td></tr>
</table>
</body></html>`

const rankPageTwo = `<html><body>
<table>
<tr><th>Rank</th><th>Title</th><th>Rating</th></tr>
<tr><td>101</td><td><a href="/boardgame/100/some-game">Some Game</a></td><td>7.0</td></tr>
<tr><td>102</td><td><a href="/boardgame/200/other-game">Other Game</a></td><td>7.1</td></tr>
<tr><td>n/a</td><td><a href="/boardgame/300/unranked">Unranked</a></td><td>6.0</td></tr>
</table>
</body></html>`

func newTestDiscoverer(baseURL string) *Discoverer {
	fetcher := NewFetcher(DefaultFetchConfig())
	fetcher.sleep = func(time.Duration) {}
	d := NewDiscoverer(fetcher, baseURL)
	d.sleep = func(time.Duration) {}
	return d
}

func TestDiscoverPagination(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		switch r.URL.Path {
		case "/browse":
			fmt.Fprint(w, rankPageOne)
		case "/browse/page/2":
			fmt.Fprint(w, rankPageTwo)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	d := newTestDiscoverer(server.URL + "/browse")
	ids, stats, err := d.Discover(context.Background(), 2)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(requested) != 2 || requested[0] != "/browse" || requested[1] != "/browse/page/2" {
		t.Errorf("Unexpected request paths: %v", requested)
	}

	want := []int64{174430, 161936, 224517, 100, 200}
	if len(ids) != len(want) {
		t.Fatalf("Expected %d ids, got %d: %v", len(want), len(ids), ids)
	}
	for _, id := range want {
		if !ids[id] {
			t.Errorf("Expected id %d to be discovered", id)
		}
	}

	if len(stats) != 2 {
		t.Fatalf("Expected 2 page stats, got %d", len(stats))
	}
	if stats[0].Found != 3 || stats[0].Skipped != 1 {
		t.Errorf("Page 1: expected found=3 skipped=1, got %+v", stats[0])
	}
	if stats[1].Found != 2 || stats[1].Skipped != 1 {
		t.Errorf("Page 2: expected found=2 skipped=1, got %+v", stats[1])
	}
}

func TestDiscoverSkipsFailedPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/browse" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, rankPageTwo)
	}))
	defer server.Close()

	d := newTestDiscoverer(server.URL + "/browse")
	ids, stats, err := d.Discover(context.Background(), 2)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(ids) != 2 {
		t.Errorf("Expected 2 ids from surviving page, got %d", len(ids))
	}
	if stats[0].Found != 0 {
		t.Errorf("Failed page should report zero found, got %+v", stats[0])
	}
}

func TestDiscoverNoTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>maintenance</p></body></html>")
	}))
	defer server.Close()

	d := newTestDiscoverer(server.URL)
	ids, stats, err := d.Discover(context.Background(), 1)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no ids, got %v", ids)
	}
	if stats[0].Found != 0 || stats[0].Skipped != 0 {
		t.Errorf("Expected empty stats, got %+v", stats[0])
	}
}

func TestDiscoverDuplicateAcrossPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rankPageOne)
	}))
	defer server.Close()

	d := newTestDiscoverer(server.URL)
	ids, stats, err := d.Discover(context.Background(), 2)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("Expected 3 unique ids, got %d", len(ids))
	}
	if stats[1].Found != 0 {
		t.Errorf("Second identical page should add no new ids, got %+v", stats[1])
	}
}
