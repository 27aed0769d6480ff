package maintenance

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject reload triggers are published on.
const DefaultSubject = "kraken.reload"

// ConnectNATS connects to the server at url for reload triggers.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("kraken"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// Subscribe turns messages on subject into triggers. The payload is the
// reload kind, "base" or "realtime"; other payloads are logged and
// dropped.
func (l *Loop) Subscribe(nc *nats.Conn, subject string) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		k, err := ParseKind(string(msg.Data))
		if err != nil {
			l.log.Warn("ignoring reload message", "subject", msg.Subject, "error", err)
			return
		}
		l.log.Debug("reload requested", "subject", msg.Subject, "kind", k.String())
		l.Trigger(k)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}
