package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// Template IDs shared with the scheduling loop.
const (
	TemplateRenewalReminder = "renewal_reminder"
	TemplateOverdueReminder = "overdue_reminder"
	TemplateEscalation      = "renewal_escalation"
)

var bodies = template.Must(template.New("email").Parse(`
{{define "renewal_reminder"}}<p>Hi,</p>
<p>The {{.asset_kind}} <strong>{{.asset_name}}</strong> expires in {{.days_remaining}} day(s), on {{.expires_at}}.</p>
<p>Renew it before the expiry date to avoid service interruption.</p>{{end}}

{{define "overdue_reminder"}}<p>Hi,</p>
<p>The {{.asset_kind}} <strong>{{.asset_name}}</strong> expired on {{.expires_at}}.</p>
<p>Renew it as soon as possible to restore service.</p>{{end}}

{{define "renewal_escalation"}}<p>Renewal escalation.</p>
<p>The {{.asset_kind}} <strong>{{.asset_name}}</strong> is overdue ({{.expires_at}}) and no renewal action has been recorded.</p>{{end}}
`))

func subjectFor(templateID string, vars map[string]string) string {
	name := vars["asset_name"]
	switch templateID {
	case TemplateRenewalReminder:
		return fmt.Sprintf("Renewal reminder: %s", name)
	case TemplateOverdueReminder:
		return fmt.Sprintf("Expired: %s", name)
	case TemplateEscalation:
		return fmt.Sprintf("Escalation: %s overdue", name)
	}
	return fmt.Sprintf("Renewal notice: %s", name)
}

func renderBody(templateID string, vars map[string]string) (string, error) {
	var body bytes.Buffer
	if err := bodies.ExecuteTemplate(&body, templateID, vars); err != nil {
		return "", fmt.Errorf("render template %s: %w", templateID, err)
	}
	return body.String(), nil
}
