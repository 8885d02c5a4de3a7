package main

import (
	"context"

	"github.com/wippy-projects/headless/manager"
	"github.com/wippy-projects/headless/tab"
)

// session bundles a running Manager with the one tab a single-shot
// headlessctl invocation opens against it.
type session struct {
	mgr *manager.Manager
	tab *tab.Tab
}

// openSession connects to the configured browser, opens one tab, and
// returns both, ready for a command's operation to run against.
func openSession(ctx context.Context) (*session, error) {
	dial := manager.NewTransportDialer(cfg.BrowserAddr, cfg.ConnectTimeout, nil)
	mgr, err := manager.New(ctx, dial,
		manager.WithMaxTabs(cfg.MaxTabs),
		manager.WithCreateTimeout(cfg.CreateTimeout),
		manager.WithCommandTimeout(cfg.CommandTimeout),
		manager.WithHealthInterval(cfg.HealthInterval),
		manager.WithSubscriptionCapacity(cfg.SubscriptionCapacity),
		manager.WithReconnectBackoff(cfg.ReconnectBase, cfg.ReconnectMax),
		manager.WithReconnectAttempts(cfg.ReconnectAttempts),
	)
	if err != nil {
		return nil, err
	}

	reply, err := mgr.CreateTab(ctx)
	if err != nil {
		mgr.Close()
		return nil, err
	}

	t := tab.New(mgr, reply, tab.WithCommandTimeout(cfg.CommandTimeout))
	return &session{mgr: mgr, tab: t}, nil
}

// Close tears the tab and the manager down in order, best-effort: a
// failure to close the tab shouldn't prevent the manager from also
// shutting down its connection.
func (s *session) Close(ctx context.Context) {
	_ = s.tab.Close(ctx)
	s.mgr.Close()
}
