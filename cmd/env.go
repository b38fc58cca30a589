package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/correct"
	"github.com/sells-group/zoning-cli/internal/cost"
	"github.com/sells-group/zoning-cli/internal/extractor"
	"github.com/sells-group/zoning-cli/internal/mapper"
	"github.com/sells-group/zoning-cli/internal/ocr"
	"github.com/sells-group/zoning-cli/internal/store"
	anthropicpkg "github.com/sells-group/zoning-cli/pkg/anthropic"
	sfpkg "github.com/sells-group/zoning-cli/pkg/salesforce"
)

// pipelineEnv holds the initialized store, clients, and pipeline shared by
// the extract/serve/worker/experiment commands.
type pipelineEnv struct {
	Store    store.Store
	LLM      anthropicpkg.Client
	Pipeline *extractor.Pipeline
	Calc     *cost.Calculator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "zoning.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, OCR and Anthropic clients, the alias
// mapper, and the extraction pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)

	// OCR is optional: plain-text documents never touch it, so a missing
	// pdftotext binary or Mistral key only degrades PDF input.
	textExtractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		zap.L().Warn("ocr unavailable, pdf input disabled", zap.Error(err))
		textExtractor = nil
	}

	m, err := buildMapper()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	calc := cost.NewCalculator(ratesFromConfig(cfg.Pricing))

	return &pipelineEnv{
		Store:    st,
		LLM:      llm,
		Pipeline: extractor.New(st, llm, textExtractor, m, calc, cfg.Anthropic),
		Calc:     calc,
	}, nil
}

// buildMapper assembles the alias registry and contamination corrector from
// config, falling back to the built-in defaults when no override files are
// set.
func buildMapper() (*mapper.Mapper, error) {
	table := correct.DefaultTable()
	if cfg.Corrector.TableFile != "" {
		var err error
		table, err = correct.LoadTable(cfg.Corrector.TableFile)
		if err != nil {
			return nil, eris.Wrapf(err, "load correction table %s", cfg.Corrector.TableFile)
		}
	}

	correctCfg := correct.DefaultConfig()
	if cfg.Corrector.MinPlausible > 0 {
		correctCfg.MinPlausible = cfg.Corrector.MinPlausible
	}
	if cfg.Corrector.MaxPlausible > 0 {
		correctCfg.MaxPlausible = cfg.Corrector.MaxPlausible
	}
	if cfg.Corrector.OverlargeThreshold > 0 {
		correctCfg.OverlargeThreshold = cfg.Corrector.OverlargeThreshold
	}

	registry := mapper.Default()
	if cfg.Mapper.AliasesFile != "" {
		var err error
		registry, err = mapper.LoadOverrides(cfg.Mapper.AliasesFile)
		if err != nil {
			return nil, eris.Wrapf(err, "load alias overrides %s", cfg.Mapper.AliasesFile)
		}
	}

	return mapper.New(registry, correct.New(correctCfg, table)), nil
}

// ratesFromConfig converts configured pricing into calculator rates; an
// empty pricing table means the built-in defaults.
func ratesFromConfig(pc config.PricingConfig) cost.Rates {
	if len(pc.Anthropic) == 0 {
		return cost.DefaultRates()
	}
	rates := cost.Rates{Anthropic: make(map[string]cost.ModelRate, len(pc.Anthropic))}
	for model, p := range pc.Anthropic {
		rates.Anthropic[model] = cost.ModelRate{
			Input:         p.Input,
			Output:        p.Output,
			BatchDiscount: p.BatchDiscount,
			CacheWriteMul: p.CacheWriteMul,
			CacheReadMul:  p.CacheReadMul,
		}
	}
	return rates
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (ZONING_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
