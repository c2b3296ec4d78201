package client_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fluxloop/fluxloop-cli/internal/client"
)

var _ = Describe("upload", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("HashContent", func() {
		It("returns the hex encoded SHA-256 digest", func() {
			Expect(client.HashContent([]byte("hello"))).To(Equal(
				"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"))
		})

		It("hashes empty content", func() {
			Expect(client.HashContent(nil)).To(Equal(
				"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"))
		})
	})

	Describe("UploadContent", func() {
		It("puts the content with the signed headers", func() {
			var receivedBody []byte

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPut))
				Expect(r.Header.Get("x-test")).To(Equal("1"))
				receivedBody, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			err := client.UploadContent(ctx, server.URL, map[string]string{"x-test": "1"}, []byte("question,answer\nQ1,A1\n"))

			Expect(err).To(BeNil())
			Expect(string(receivedBody)).To(Equal("question,answer\nQ1,A1\n"))
		})

		It("returns an error for a rejected upload", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			}))
			defer server.Close()

			err := client.UploadContent(ctx, server.URL, nil, []byte("content"))

			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("upload failed with status 403"))
		})

		It("returns error when the upload URL is unreachable", func() {
			err := client.UploadContent(ctx, "http://[invalid-url", nil, []byte("content"))

			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("failed to create request"))
		})
	})
})
