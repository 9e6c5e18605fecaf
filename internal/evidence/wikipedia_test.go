package evidence

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/util"
)

const earthSearch = `{"query":{"search":[
 {"title":"Earth","pageid":9228,"snippet":"<span class=\"searchmatch\">Earth</span> orbits around the <span class=\"searchmatch\">Sun</span>","timestamp":"2024-05-01T10:00:00Z"},
 {"title":"Flat Earth","pageid":11412,"snippet":"a discredited belief","timestamp":"2024-04-01T10:00:00Z"}
]}}`

func TestWikipediaSource_Retrieve(t *testing.T) {
	var gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("srsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(earthSearch))
	}))
	defer server.Close()

	robots := util.NewRobotsChecker("Veritas/0.1", server.Client())
	src := NewWikipediaSource(server.URL, server.Client(), "Veritas/0.1", robots, NewAuthorityClassifier(&model.AuthorityConfig{
		DomainMap: map[string]string{"127.0.0.1": "secondary"},
	}))

	items, err := src.Retrieve(context.Background(), "The Earth orbits around the Sun", Options{Depth: 3})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if gotUA != "Veritas/0.1" {
		t.Errorf("Expected user agent to be sent, got %q", gotUA)
	}
	if gotQuery != "The Earth orbits around the Sun" {
		t.Errorf("Expected claim as search query, got %q", gotQuery)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Sentiment != model.SentimentSupporting {
		t.Errorf("Expected supporting evidence for matching snippet, got %s (relevance %f)", first.Sentiment, first.Relevance)
	}
	if first.Text != "Earth orbits around the Sun" {
		t.Errorf("Expected HTML stripped snippet, got %q", first.Text)
	}
	if first.Source.ID != "wikipedia:9228" {
		t.Errorf("Unexpected source id %s", first.Source.ID)
	}
	if first.Source.Reliability != 0.75 || first.Source.Authority != model.TierSecondary {
		t.Errorf("Expected secondary authority reliability, got %+v", first.Source)
	}
	if first.Source.Timestamp == nil {
		t.Error("Expected timestamp parsed")
	}

	if items[1].Sentiment != model.SentimentNeutral {
		t.Errorf("Expected unrelated hit to be neutral, got %s", items[1].Sentiment)
	}
}

func TestWikipediaSource_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := NewWikipediaSource(server.URL, server.Client(), "Veritas/0.1", nil, nil)
	_, err := src.Retrieve(context.Background(), "claim", Options{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestWikipediaSource_RobotsDisallow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /w/\n"))
			return
		}
		t.Error("API must not be called when robots.txt disallows it")
	}))
	defer server.Close()

	robots := util.NewRobotsChecker("Veritas/0.1", server.Client())
	src := NewWikipediaSource(server.URL, server.Client(), "Veritas/0.1", robots, nil)
	_, err := src.Retrieve(context.Background(), "claim", Options{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestTermOverlap(t *testing.T) {
	terms := contentTerms("The Earth orbits around the Sun")
	if len(terms) != 3 {
		t.Fatalf("Expected 3 content terms (earth, orbits, sun), got %v", terms)
	}
	if got := termOverlap(terms, "earth and sun"); got < 0.66 || got > 0.67 {
		t.Errorf("Expected overlap 2/3, got %f", got)
	}
	if got := termOverlap(nil, "anything"); got != 0 {
		t.Errorf("Expected 0 for no terms, got %f", got)
	}
}
