package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ibca/academic/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"

	plainCategory = "plain" // messages without a template
)

// sendgridService delivers receipts and password resets through the SendGrid v3 API.
// Every message is tagged with the app category and its template name so deliveries can be
// told apart in the SendGrid activity feed.
type sendgridService struct {
	key             string
	from            *sgmail.Email
	subjPrefix      string
	appCategory     string
	frontendBaseURL string
	sandbox         bool // test mode: SendGrid validates the request but delivers nothing
	logger          core.Logger
}

var _ core.EmailService = (*sendgridService)(nil) // interface compliance check

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:             conf.SendgridApiKey,
		from:            sgmail.NewEmail(from.Name, from.Address),
		subjPrefix:      "[" + conf.AppName + "] ",
		appCategory:     strings.ToLower(strings.ReplaceAll(conf.AppName, " ", "-")),
		frontendBaseURL: conf.FrontendBaseURL,
		sandbox:         conf.TestMode,
		logger:          logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc sendgridService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(svc.frontendBaseURL); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}

	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.buildMail(*msg))

	res, err := sendgrid.API(req)
	switch {
	case err != nil:
		svc.logger.Error(fmt.Sprintf("sending %s email: %v", svc.category(*msg), err), err)
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sending %s email: status %d", svc.category(*msg), res.StatusCode), map[string]interface{}{
			"subject":  msg.Subject,
			"template": msg.TemplateName,
			"body":     res.Body,
		})
	}
}

func (svc sendgridService) category(msg core.EmailMessage) string {
	if msg.TemplateName == "" {
		return plainCategory
	}
	return msg.TemplateName
}

// buildMail maps a rendered message onto a single personalization; cc and bcc share its subject.
func (svc sendgridService) buildMail(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(sgAddresses(msg.To)...)
	p.AddCCs(sgAddresses(msg.Cc)...)
	p.AddBCCs(sgAddresses(msg.Bcc)...)

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddCategories(svc.appCategory, svc.category(msg))

	// SendGrid rejects empty content values
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}

	if svc.sandbox {
		m.SetMailSettings(sgmail.NewMailSettings().SetSandboxMode(sgmail.NewSetting(true)))
	}
	return m
}

func sgAddresses(addrs []mail.Address) []*sgmail.Email {
	out := make([]*sgmail.Email, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, sgmail.NewEmail(a.Name, a.Address))
	}
	return out
}
