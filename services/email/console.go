// Package emailsvc sends the application's emails, to sendgrid in production or to the console otherwise.
package emailsvc

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
)

type consoleService struct {
	from          mail.Address
	subjPrefix    string
	out           *log.Logger
	logger        core.Logger
	blocking      bool
	disableOutput bool

	pending sync.WaitGroup
	mu      sync.Mutex
	sent    []core.EmailMessage
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService prints every message as a MIME document instead of sending it.
func NewConsoleService(conf *core.Config, out *log.Logger, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.FromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		out:        out,
		logger:     logger,
	}
}

// Outbox is a console service that renders synchronously and keeps what it "sent", for tests.
type Outbox struct {
	*consoleService
}

func NewOutbox(conf *core.Config) *Outbox {
	return &Outbox{consoleService: &consoleService{
		from:          conf.FromEmail(),
		subjPrefix:    "[" + conf.AppName + "] ",
		out:           log.New(io.Discard, "", 0),
		blocking:      true,
		disableOutput: true,
	}}
}

// Sent returns a copy of every message sent so far.
func (o *Outbox) Sent() []core.EmailMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]core.EmailMessage(nil), o.sent...)
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.blocking {
			svc.sendMessage(msg)
		} else {
			svc.pending.Add(1)
			go func(msg *core.EmailMessage) {
				defer svc.pending.Done()
				svc.sendMessage(msg)
			}(msg)
		}
	}
}

// Wait blocks until every message handed to SendMessages is out.
func (svc *consoleService) Wait() { svc.pending.Wait() }

func (svc *consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		if svc.logger != nil {
			svc.logger.Error(fmt.Sprintf("rendering email: %v", err), errors.Wrap(err, "rendering email"))
		}
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}

	body, err := svc.format(*msg)
	if err != nil {
		if svc.logger != nil {
			svc.logger.Error(fmt.Sprintf("formatting email: %v", err), err)
		}
		return
	}
	if !svc.disableOutput {
		svc.out.Println(body)
	}

	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()
}

func (svc *consoleService) format(msg core.EmailMessage) (string, error) {
	body := new(strings.Builder)

	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}

	altW := multipart.NewWriter(body)
	var mixedW *multipart.Writer
	if msg.HasAttachments() {
		mixedW = multipart.NewWriter(body)
		_, _ = fmt.Fprintf(body, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixedW.Boundary())
		if _, err := mixedW.CreatePart(textproto.MIMEHeader{"Content-Type": {"multipart/alternative; boundary=" + altW.Boundary()}}); err != nil {
			return "", errors.Wrap(err, "creating multipart/alternative part")
		}
	} else {
		_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())
	}

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return "", errors.Wrap(err, "creating text/plain part")
	}
	_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.HTMLContent != "" {
		if w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}}); err != nil {
			return "", errors.Wrap(err, "creating text/html part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	if err = altW.Close(); err != nil {
		return "", err
	}

	if mixedW != nil {
		for _, at := range msg.Attachments {
			w, err = mixedW.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {at.ContentType},
				"Content-Transfer-Encoding": {"base64"},
				"Content-Disposition":       {"attachment; filename=" + at.Filename},
			})
			if err != nil {
				return "", errors.Wrap(err, "creating "+at.ContentType+" part")
			}
			_, _ = fmt.Fprintf(w, "%s\r\n", at.Content.String())
		}
		if err = mixedW.Close(); err != nil {
			return "", err
		}
	}
	return body.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
