package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestManagerLazyLoginAndRefresh(t *testing.T) {
	var calls int
	m := NewManager(func(ctx context.Context) (*http.Client, error) {
		calls++
		return &http.Client{}, nil
	})

	first, err := m.Client(context.Background())
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	again, _ := m.Client(context.Background())
	if first != again {
		t.Error("expected Client to reuse the handle")
	}
	if calls != 1 {
		t.Errorf("expected 1 login, got %d", calls)
	}

	refreshed, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed == first {
		t.Error("expected Refresh to swap the handle")
	}
	current, _ := m.Client(context.Background())
	if current != refreshed {
		t.Error("expected Client to return the refreshed handle")
	}
	if m.Generation() != 2 {
		t.Errorf("expected generation 2, got %d", m.Generation())
	}
}

func TestManagerWrapsObtainErrors(t *testing.T) {
	m := NewManager(func(ctx context.Context) (*http.Client, error) {
		return nil, errors.New("connection refused")
	})
	_, err := m.Refresh(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if m.Generation() != 0 {
		t.Errorf("expected generation 0, got %d", m.Generation())
	}
}

func newLoginServer(t *testing.T, password string) (*httptest.Server, *int32) {
	t.Helper()
	var posts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok123", Path: "/"})
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			atomic.AddInt32(&posts, 1)
			if err := r.ParseForm(); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if r.PostForm.Get("csrfmiddlewaretoken") != "tok123" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if r.PostForm.Get("username") != "agro" || r.PostForm.Get("password") != password {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "s1", Path: "/"})
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &posts
}

func TestLoginSuccess(t *testing.T) {
	srv, _ := newLoginServer(t, "secret")
	obtain := Login(Credentials{LoginURL: srv.URL + "/login/", Username: "agro", Password: "secret"})

	client, err := obtain(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if client.Jar == nil {
		t.Fatal("expected client with cookie jar")
	}
}

func TestLoginRejectedIsNotRetried(t *testing.T) {
	srv, posts := newLoginServer(t, "secret")
	obtain := Login(Credentials{
		LoginURL:   srv.URL + "/login/",
		Username:   "agro",
		Password:   "wrong",
		MaxElapsed: 5 * time.Second,
	})

	_, err := obtain(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if n := atomic.LoadInt32(posts); n != 1 {
		t.Errorf("expected 1 login attempt, got %d", n)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	_, err := Login(Credentials{LoginURL: "http://example.invalid/login/"})(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
