// Package email renders and delivers quiz result notifications over SMTP.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/cloo-solutions/aura/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var quizResultTemplate = template.Must(
	template.New("quiz_result.html.tmpl").
		Option("missingkey=error").
		Funcs(sprig.HtmlFuncMap()).
		Funcs(template.FuncMap{"safeCSS": func(s string) template.CSS { return template.CSS(s) }}).
		ParseFS(templateFS, "templates/quiz_result.html.tmpl"),
)

// Config holds SMTP settings. Sending is skipped unless Username and
// Password are both set.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c Config) configured() bool {
	return c.Username != "" && c.Password != ""
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers quiz result emails.
type Sender struct {
	cfg      Config
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSender(cfg Config) *Sender {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.configured() {
		log.Printf("Email sender configured for %s:%d", cfg.Host, cfg.Port)
	} else {
		log.Printf("Email sender not configured, notifications will be skipped")
	}
	return &Sender{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type quizResultView struct {
	Name           string
	TopicTitle     string
	Score          int
	MaxScore       int
	Percentage     int
	CorrectAnswers int
	TotalQuestions int
	Passed         bool
	Status         domain.MasteryStatus
	NextReviewDate string
	Year           int
}

// Subject is "Quiz Results: <topic> - <score>/10".
func Subject(event domain.QuizResultEvent) string {
	return fmt.Sprintf("Quiz Results: %s - %d/%d", topicTitle(event), event.Score, domain.MaxQuizScore)
}

func topicTitle(event domain.QuizResultEvent) string {
	if event.TopicTitle != "" {
		return event.TopicTitle
	}
	return event.TopicID
}

// Render builds the quiz result email for event.
func (s *Sender) Render(event domain.QuizResultEvent) (*Message, error) {
	view := quizResultView{
		TopicTitle:     topicTitle(event),
		Score:          event.Score,
		MaxScore:       domain.MaxQuizScore,
		Percentage:     event.Score * 100 / domain.MaxQuizScore,
		CorrectAnswers: event.CorrectAnswers,
		TotalQuestions: event.TotalQuestions,
		Passed:         event.Passed(),
		Status:         event.Status,
		Year:           s.now().Year(),
	}
	if !event.NextReviewDate.IsZero() {
		view.NextReviewDate = event.NextReviewDate.UTC().Format("Monday, January 2, 2006")
	}

	var buf bytes.Buffer
	if err := quizResultTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render quiz result email: %w", err)
	}
	return &Message{To: event.Recipient, Subject: Subject(event), HTML: buf.String()}, nil
}

// Send renders and delivers the notification. Events without a recipient, or
// a sender without credentials, are skipped without error.
func (s *Sender) Send(ctx context.Context, event domain.QuizResultEvent) error {
	if event.Recipient == "" {
		log.Printf("Quiz result for user %s topic %s has no recipient, skipping email", event.UserID, event.TopicID)
		return nil
	}
	if !s.cfg.configured() {
		log.Printf("Email sender not configured, skipping quiz result for %s", event.Recipient)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.Render(event)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.sendMail(addr, auth, s.cfg.From, []string{msg.To}, s.encode(msg))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", msg.To, err)
		}
		log.Printf("Email sent successfully to %s", msg.To)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sender) encode(msg *Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.cfg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + s.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}
