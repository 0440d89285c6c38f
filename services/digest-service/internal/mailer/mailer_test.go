package mailer

import (
	"bytes"
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LogSender", func() {
	It("logs the digest instead of sending it", func() {
		var buf bytes.Buffer
		sender := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

		err := sender.SendDigest(context.Background(), "mona@example.com", "New GitHub Timeline Updates", "<p>hi</p>", "a\nb\nc")
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("recipient=mona@example.com"))
		Expect(buf.String()).To(ContainSubstring("lines=3"))
		Expect(buf.String()).To(ContainSubstring("component=mailer.log"))
	})

	It("honors cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewLogSender(nil).SendDigest(ctx, "mona@example.com", "s", "", "")
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("SMTPSender", func() {
	cfg := SMTPConfig{
		Host:      "smtp.example.com",
		Port:      587,
		Username:  "user",
		Password:  "secret",
		FromEmail: "noreply@example.com",
		FromName:  "GitHub Timeline Updates",
	}

	It("requires credentials", func() {
		bad := cfg
		bad.Password = ""
		_, err := NewSMTPSender(bad, nil)
		Expect(err).To(HaveOccurred())
	})

	It("builds a multipart message with text and html parts", func() {
		sender, err := NewSMTPSender(cfg, nil)
		Expect(err).NotTo(HaveOccurred())

		msg, err := sender.message("mona@example.com", "New GitHub Timeline Updates", "<p>hello html</p>", "hello text")
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		_, err = msg.WriteTo(&buf)
		Expect(err).NotTo(HaveOccurred())

		raw := buf.String()
		Expect(raw).To(ContainSubstring("Subject: New GitHub Timeline Updates"))
		Expect(raw).To(ContainSubstring("<mona@example.com>"))
		Expect(raw).To(ContainSubstring("noreply@example.com"))
		Expect(raw).To(ContainSubstring("multipart/alternative"))
		Expect(raw).To(ContainSubstring("text/plain"))
		Expect(raw).To(ContainSubstring("text/html"))
		Expect(raw).To(ContainSubstring("hello text"))
		Expect(raw).To(ContainSubstring("hello html"))
	})

	It("rejects an invalid recipient", func() {
		sender, err := NewSMTPSender(cfg, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = sender.message("not an address", "s", "", "")
		Expect(err).To(HaveOccurred())
	})
})
