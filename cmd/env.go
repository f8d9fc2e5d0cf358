package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/maim-pdmr/spiz/internal/answer"
	"github.com/maim-pdmr/spiz/internal/query"
	"github.com/maim-pdmr/spiz/internal/session"
	"github.com/maim-pdmr/spiz/internal/store"
	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "spiz.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initAnthropic() (anthropic.Client, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (SPIZ_ANTHROPIC_KEY)")
	}
	return anthropic.NewClient(cfg.Anthropic.Key), nil
}

// initAnswer wires the question-answering service and its session store.
func initAnswer(st store.Store, client anthropic.Client) (*answer.Service, error) {
	rules := query.DefaultIntentRules()
	if cfg.Answer.RulesPath != "" {
		loaded, err := query.LoadIntentRules(cfg.Answer.RulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	sessions := session.NewMemory(0)
	return answer.NewService(st, sessions, client, answer.Options{
		CapableModel: cfg.Anthropic.CapableModel,
		FastModel:    cfg.Anthropic.FastModel,
		CallTimeout:  time.Duration(cfg.Answer.CallTimeoutSecs) * time.Second,
		IntentRules:  rules,
	}), nil
}
