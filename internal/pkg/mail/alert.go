package mail

import (
	"fmt"
	"html"

	"github.com/LucaWinkler/FlohMarkt/internal/pkg/env"
)

// SendDeadLetterAlert notifies the operations address that a task exhausted
// its retries and was moved to the dead letter archive. Alerting is off
// when OPS_ALERT_EMAIL is not configured.
func SendDeadLetterAlert(taskType, taskID string, cause error) error {
	to := env.GetEnv("OPS_ALERT_EMAIL", "")
	if to == "" {
		return nil
	}

	causeText := ""
	if cause != nil {
		causeText = cause.Error()
	}

	subject := fmt.Sprintf("[FlohMarkt] Dead-Letter: %s", taskType)
	body := fmt.Sprintf(
		"<p>Der Task <b>%s</b> (ID %s) wurde nach Ausschöpfung aller Wiederholungsversuche archiviert.</p>"+
			"<p>Letzter Fehler: %s</p>"+
			"<p>Der Task kann über die Ops-API erneut eingeplant werden.</p>",
		html.EscapeString(taskType), html.EscapeString(taskID), html.EscapeString(causeText),
	)
	return SendMail(to, subject, body)
}
