package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"notifcollector/internal/config"
	"notifcollector/internal/messagestore"
	logx "notifcollector/pkg/logx"
)

// ImportMessages loads a JSON Lines message dump into the configured store.
func ImportMessages(ctx context.Context, cfgPath string, r io.Reader) (int, error) {
	cfg, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}
	sc, enabled, err := mapStoreConfig(cfg)
	if err != nil {
		return 0, err
	}
	if !enabled {
		return 0, messagestore.ErrDisabled
	}
	logs, log := logx.New(mapLogConfig(cfg))
	defer func() { _ = logs.Close() }()

	st, err := messagestore.Open(sc, log.With(logx.String("comp", "store")))
	if err != nil {
		return 0, fmt.Errorf("open message store: %w", err)
	}
	n, err := messagestore.Import(ctx, st, r)
	return n, errors.Join(err, st.Close())
}
