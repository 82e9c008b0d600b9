package xmpp

import (
	"crypto/tls"
	"errors"
	"strings"
	"sync"

	"github.com/mattn/go-xmpp"
	log "github.com/sirupsen/logrus"
)

var ErrMissingConfig = errors.New("missing xmpp config")

type (
	// Config of the operator chat account.
	Config struct {
		Host     string
		Jid      string
		Password string
		To       string
	}

	// Xmpp announces planner events, such as a port added by a user, to an
	// operator.
	Xmpp struct {
		Config Config

		mu     sync.Mutex
		client *xmpp.Client
	}
)

func New(cfg Config) *Xmpp {
	return &Xmpp{Config: cfg}
}

func (c Config) Enabled() bool {
	return len(c.Jid) > 0 && len(c.Password) > 0 && len(c.To) > 0
}

func serverName(jid string) string {
	if i := strings.LastIndex(jid, "@"); i >= 0 {
		return jid[i+1:]
	}
	return jid
}

func (x *Xmpp) options() xmpp.Options {
	host := x.Config.Host
	if len(host) == 0 {
		host = serverName(x.Config.Jid)
	}

	return xmpp.Options{
		Host:          host,
		User:          x.Config.Jid,
		Password:      x.Config.Password,
		NoTLS:         true,
		StartTLS:      true,
		TLSConfig:     &tls.Config{InsecureSkipVerify: true},
		Debug:         false,
		Session:       false,
		Status:        "xa",
		StatusMessage: "Voyage planner",
	}
}

func (x *Xmpp) connect() (*xmpp.Client, error) {
	if x.client != nil {
		return x.client, nil
	}
	options := x.options()
	log.WithFields(log.Fields{"host": options.Host, "jid": options.User}).Debug("Connecting to xmpp")

	talk, err := options.NewClient()
	if err != nil {
		return nil, err
	}
	x.client = talk
	return talk, nil
}

// Send delivers message to the configured recipient. A broken connection is
// dropped and dialled again once.
func (x *Xmpp) Send(message string) error {
	if !x.Config.Enabled() {
		log.Debug("Skipping xmpp message, no account configured")
		return ErrMissingConfig
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	chat := xmpp.Chat{Remote: x.Config.To, Type: "chat", Text: message}
	for attempt := 0; attempt < 2; attempt++ {
		talk, err := x.connect()
		if err != nil {
			log.WithError(err).Error("Unable to connect to xmpp")
			return err
		}
		if _, err = talk.Send(chat); err == nil {
			return nil
		}
		log.WithError(err).Warn("Xmpp send failed, reconnecting")
		talk.Close()
		x.client = nil
	}
	return errors.New("xmpp send failed")
}

func (x *Xmpp) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.client == nil {
		return nil
	}
	err := x.client.Close()
	x.client = nil
	return err
}
