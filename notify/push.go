package notify

import (
	"context"
	"log"
	"os"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// Push is an optional secondary mobile-push channel, gated on the
// presence of a Firebase service-account credentials file. A nil
// receiver is valid and every method on it is a no-op.
type Push struct {
	client *messaging.Client
	queue  chan pushMessage
}

type pushMessage struct {
	topic string
	title string
	body  string
	data  map[string]string
}

// NewPush returns nil when credentialsFile is empty or missing, so push
// notifications can be left unconfigured entirely.
func NewPush(credentialsFile string) *Push {
	if credentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		log.Printf("⚠️ PUSH: credentials file %s not found, push notifications disabled", credentialsFile)
		return nil
	}

	app, err := firebase.NewApp(context.Background(), nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		log.Printf("⚠️ PUSH: failed to init firebase app: %v", err)
		return nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ PUSH: failed to get messaging client: %v", err)
		return nil
	}

	p := &Push{client: client, queue: make(chan pushMessage, 500)}
	go p.worker()

	log.Printf("✅ PUSH: firebase messaging initialized (%s)", credentialsFile)
	return p
}

func (p *Push) worker() {
	for msg := range p.queue {
		message := &messaging.Message{
			Notification: &messaging.Notification{Title: msg.title, Body: msg.body},
			Data:         msg.data,
			Topic:        msg.topic,
		}
		id, err := p.client.Send(context.Background(), message)
		if err != nil {
			log.Printf("⚠️ PUSH: send failed: %v", err)
			continue
		}
		log.Printf("📲 PUSH: sent %s (id=%s)", msg.body, id)
	}
}

// NotifyPositionEvent queues a non-blocking push describing a position
// lifecycle event (open, stop hit, hedge engaged, take-profit filled).
func (p *Push) NotifyPositionEvent(symbol, title, body string, data map[string]string) {
	if p == nil {
		return
	}
	select {
	case p.queue <- pushMessage{topic: "position_events_" + symbol, title: title, body: body, data: data}:
	default:
		log.Println("⚠️ PUSH: queue full, dropping notification")
	}
}
