package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func Test_Supabase_SignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/storage/v1/object/sign/docs/case/1/a.pdf" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "key" {
			t.Errorf("apikey header missing")
		}
		var body map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["expiresIn"] != 60 {
			t.Errorf("expiresIn = %d", body["expiresIn"])
		}
		_, _ = w.Write([]byte(`{"signedURL":"/object/sign/docs/case/1/a.pdf?token=t"}`))
	}))
	defer srv.Close()

	sb := NewSupabase(srv.URL+"/", "key", "docs")
	url, err := sb.SignedURL(context.Background(), "case/1/a.pdf", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if url != srv.URL+"/storage/v1/object/sign/docs/case/1/a.pdf?token=t" {
		t.Fatalf("url = %s", url)
	}
}

func Test_Supabase_Delete_NotFoundIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewSupabase(srv.URL, "key", "docs").Delete(context.Background(), "gone.pdf"); err != nil {
		t.Fatalf("404 must be treated as deleted: %v", err)
	}
}

func Test_Supabase_Delete_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewSupabase(srv.URL, "key", "docs").Delete(context.Background(), "x.pdf")
	if err == nil || !strings.Contains(err.Error(), "supabase delete error") {
		t.Fatalf("err = %v", err)
	}
}

func Test_S3_SignedURL_Offline(t *testing.T) {
	client := s3.New(s3.Options{
		Region:      "eu-west-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	})
	st := NewS3FromClient(client, "case-docs")
	url, err := st.SignedURL(context.Background(), "case/1/a.pdf", 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(url, "case-docs") || !strings.Contains(url, "case/1/a.pdf") {
		t.Fatalf("url = %s", url)
	}
}
