package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/chorely/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	if pub == "" {
		t.Error("expected non-empty public key")
	}
	if priv == "" {
		t.Error("expected non-empty private key")
	}

	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) == 0 || len(privBytes) > 32 {
		t.Errorf("private key length = %d, want at most 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func testSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	return &model.PushSubscription{
		ID:        "sub1",
		UserID:    "u1",
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func testWebPush(t *testing.T) *WebPush {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewWebPush(pub, priv, "")
}

func TestWebPushSend(t *testing.T) {
	var gotAuth, gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	wp := testWebPush(t)
	err := wp.Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "New chore", Body: "hi", URL: "/chores"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAuth == "" {
		t.Error("expected VAPID authorization header")
	}
	if gotEncoding != "aes128gcm" {
		t.Errorf("content-encoding = %q, want aes128gcm", gotEncoding)
	}
}

func TestWebPushSendExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	wp := testWebPush(t)
	err := wp.Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "x"})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

func TestWebPushSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wp := testWebPush(t)
	err := wp.Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "x"})
	if err == nil || errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want non-expiry error", err)
	}
}
