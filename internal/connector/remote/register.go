package remote

import (
	"log/slog"

	"github.com/torosent/flexconnect/internal/connector"
	"github.com/torosent/flexconnect/internal/httpclient"
	"github.com/torosent/flexconnect/internal/metrics"
)

// Register adds one connector per definition to reg under every namespace.
// The namespaces share a single instance so a token fetched while reading
// is reused for writing. When stats is non-nil each connector records its
// requests under its own name.
func Register(reg *connector.Registry, sender *httpclient.Sender, stats *metrics.Set, logger *slog.Logger, defs []Definition, namespaces ...string) error {
	for _, def := range defs {
		s := sender
		if stats != nil {
			s = sender.With(httpclient.WithRecorder(stats.For(def.Name)))
		}
		c := New(def, s, logger)
		for _, ns := range namespaces {
			if err := reg.Register(ns+def.Name, func() (connector.Module, error) { return c, nil }); err != nil {
				return err
			}
		}
	}
	return nil
}
