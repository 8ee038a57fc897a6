package config

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/service/session"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// Session holds CLI flags for the call session store
type Session struct {
	backend string
	ttl     time.Duration
}

// Flags returns CLI flags for session store configuration
func (s *Session) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "session-backend",
			Usage:       "Session store backend (firestore or memory)",
			Value:       "memory",
			Sources:     cli.EnvVars("EVERSTORY_SESSION_BACKEND"),
			Destination: &s.backend,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Call session lifetime",
			Value:       model.SessionTTL,
			Sources:     cli.EnvVars("EVERSTORY_SESSION_TTL"),
			Destination: &s.ttl,
		},
	}
}

// Configure builds the session store. The firestore backend reuses the
// repository's client so sessions live next to the durable data.
func (s *Session) Configure(client *firestore.Client) (*session.Store, error) {
	var kv session.KV
	switch s.backend {
	case "memory":
		kv = session.NewMemoryKV()
		logging.Default().Info("Using in-memory session store")

	case "firestore":
		if client == nil {
			return nil, goerr.New("firestore session backend requires the firestore repository backend")
		}
		kv = session.NewFirestoreKV(client)
		logging.Default().Info("Using Firestore session store")

	default:
		return nil, goerr.New("invalid session backend", goerr.V("backend", s.backend))
	}

	return session.New(kv, session.WithTTL(s.ttl)), nil
}
