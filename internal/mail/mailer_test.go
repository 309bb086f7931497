package mail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMailgunSendMail(t *testing.T) {
	var gotPath, gotTo, gotSubject, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTo = r.FormValue("to")
		gotSubject = r.FormValue("subject")
		gotText = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"<1@mg.example.com>","message":"Queued. Thank you."}`))
	}))
	defer srv.Close()

	m := NewMailgun("mg.example.com", "key-test", srv.URL+"/v3")
	err := m.SendMail(context.Background(), &Email{
		From:    "FitDesk <no-reply@fitdesk.app>",
		To:      []string{"a@example.com"},
		Subject: "Reset your FitDesk password",
		Body:    "hello",
	})
	if err != nil {
		t.Fatalf("SendMail: %v", err)
	}
	if gotPath != "/v3/mg.example.com/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotTo != "a@example.com" || gotSubject != "Reset your FitDesk password" || gotText != "hello" {
		t.Errorf("form = to:%q subject:%q text:%q", gotTo, gotSubject, gotText)
	}
}

func TestMailgunSendMail_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewMailgun("mg.example.com", "bad", srv.URL+"/v3")
	err := m.SendMail(context.Background(), &Email{From: "a@b.c", To: []string{"x@y.z"}, Subject: "s", Body: "b"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRender(t *testing.T) {
	subject, body, err := Render("password_reset", "Ana", "http://localhost:3000/reset-password?token=abc")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject == "" || !strings.Contains(body, "Hi Ana") || !strings.Contains(body, "token=abc") {
		t.Errorf("unexpected render: %q / %q", subject, body)
	}

	_, body, _ = Render("email_verification", "", "http://x")
	if !strings.Contains(body, "Hi there") {
		t.Errorf("missing fallback greeting: %q", body)
	}

	if _, _, err := Render("welcome", "", ""); err == nil {
		t.Error("expected unknown template error")
	}
}
