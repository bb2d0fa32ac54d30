package main

import (
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	smtpAddr := getenvDefault("HOLOMAIL_SMTP", "127.0.0.1:2025")
	smtpUser := os.Getenv("SMTP_USERNAME")
	smtpPass := os.Getenv("SMTP_PASSWORD")
	count, err := strconv.Atoi(getenvDefault("COUNT", "10"))
	if err != nil || count < 1 {
		count = 10
	}

	from := "sender@holomail.dev"
	to := []string{"inbox@holomail.dev"}

	var auth smtp.Auth
	if smtpUser != "" {
		host, _, err := net.SplitHostPort(smtpAddr)
		if err != nil {
			fail(err)
		}
		auth = smtp.PlainAuth("", smtpUser, smtpPass, host)
	}

	for i := 1; i <= count; i++ {
		message := buildMessage(from, to, i)
		if err := smtp.SendMail(smtpAddr, auth, from, to, message); err != nil {
			fail(err)
		}
	}
	fmt.Printf("sent %d messages to %s\n", count, smtpAddr)
}

func buildMessage(from string, to []string, n int) []byte {
	boundary := fmt.Sprintf("holomail-%d", time.Now().UnixNano())
	lines := []string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		fmt.Sprintf("Subject: HoloMail example #%d", n),
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", boundary),
		"",
		"--" + boundary,
		"Content-Type: text/plain; charset=utf-8",
		"",
		fmt.Sprintf("Hello from HoloMail. Message %d.", n),
		"--" + boundary,
		"Content-Type: text/html; charset=utf-8",
		"",
		fmt.Sprintf("<p>Hello from <b>HoloMail</b>. Message %d.</p>", n),
		"--" + boundary + "--",
		"",
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func getenvDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
